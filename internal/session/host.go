package session

import "sync"

// HostMessageKind identifies a typed message from an embedding host.
type HostMessageKind string

const (
	// HostSeedQuery carries a query the host wants answered on the user's
	// behalf.
	HostSeedQuery HostMessageKind = "seed-query"

	// HostReplyDestination announces where condensed responses may be
	// delivered back to the host.
	HostReplyDestination HostMessageKind = "reply-destination"
)

// HostMessage is one out-of-band message from the embedding host.
type HostMessage struct {
	Kind   HostMessageKind
	Text   string // seed query text
	Origin string // reply destination
}

// HostBridge is the bounded channel the embedding boundary delivers typed
// messages through. The orchestrator consumes pending messages synchronously
// at session start; there is no open-ended listener. Absence of a bridge does
// not affect normal operation.
type HostBridge struct {
	mu     sync.Mutex
	ch     chan HostMessage
	closed bool
}

// NewHostBridge creates a bridge with the given buffer size.
func NewHostBridge(buffer int) *HostBridge {
	if buffer <= 0 {
		buffer = 16
	}
	return &HostBridge{
		ch: make(chan HostMessage, buffer),
	}
}

// Deliver enqueues one host message without blocking. It reports false when
// the bridge is closed or the buffer is full; the host gets no backpressure
// beyond that signal.
func (b *HostBridge) Deliver(msg HostMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	select {
	case b.ch <- msg:
		return true
	default:
		return false
	}
}

// Drain returns all currently pending messages without blocking.
func (b *HostBridge) Drain() []HostMessage {
	var msgs []HostMessage
	for {
		select {
		case msg := <-b.ch:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// Close tears the bridge down. Deliveries after Close are dropped, not
// blocked. Close is idempotent.
func (b *HostBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
