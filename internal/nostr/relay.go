package nostr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/malkrite/yakiwi/internal/logger"
)

// RelayClient publishes events to relays over websocket connections.
// One Publish call owns one short-lived connection; there is no pooling,
// matching the publish-and-leave broadcast pattern.
type RelayClient struct {
	dialer *websocket.Dialer
	logger *logger.Logger
}

// NewRelayClient creates a relay publish client.
func NewRelayClient(logger *logger.Logger) *RelayClient {
	return &RelayClient{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger.WithComponent("relay"),
	}
}

// Publish transmits the signed event to one relay and waits for the
// protocol-level acknowledgment keyed by the event ID. The ctx deadline bounds
// the whole attempt; no acknowledgment within it is a failure for this relay.
func (c *RelayClient) Publish(ctx context.Context, relayURL string, ev *Event) error {
	start := time.Now()

	conn, _, err := c.dialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", relayURL, err)
	}
	defer conn.Close()

	// Closing the connection is the only way to interrupt a blocked read when
	// the caller cancels.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
		conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteJSON([]interface{}{"EVENT", ev}); err != nil {
		return fmt.Errorf("send to %s: %w", relayURL, err)
	}

	for {
		var frame []json.RawMessage
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("awaiting ack from %s: %w", relayURL, ctx.Err())
			}
			return fmt.Errorf("awaiting ack from %s: %w", relayURL, err)
		}

		// Relays may interleave NOTICE or AUTH frames; only the OK for our
		// event ID resolves the attempt.
		if len(frame) < 3 {
			continue
		}

		var label string
		if err := json.Unmarshal(frame[0], &label); err != nil || label != "OK" {
			continue
		}

		var id string
		if err := json.Unmarshal(frame[1], &id); err != nil || id != ev.ID {
			continue
		}

		var accepted bool
		if err := json.Unmarshal(frame[2], &accepted); err != nil {
			return fmt.Errorf("malformed OK frame from %s", relayURL)
		}

		if !accepted {
			reason := ""
			if len(frame) > 3 {
				json.Unmarshal(frame[3], &reason)
			}
			return fmt.Errorf("relay %s rejected event: %s", relayURL, reason)
		}

		c.logger.Debug("relay acknowledged event",
			slog.String("relay", relayURL),
			slog.String("event_id", ev.ID),
			slog.Duration("elapsed", time.Since(start)))

		return nil
	}
}
