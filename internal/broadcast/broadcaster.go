package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/malkrite/yakiwi/internal/logger"
	"github.com/malkrite/yakiwi/internal/metrics"
	"github.com/malkrite/yakiwi/internal/nostr"
)

// Publisher transmits one event to one relay and awaits its acknowledgment.
type Publisher interface {
	Publish(ctx context.Context, relayURL string, ev *nostr.Event) error
}

// Outcome reports a successful broadcast.
type Outcome struct {
	// AckedBy is the relay that acknowledged first.
	AckedBy string

	// Elapsed is the time until that acknowledgment.
	Elapsed time.Duration
}

// AllFailed reports that every relay in the target set failed, with one
// recorded error per relay for operator diagnostics.
type AllFailed struct {
	PerTarget map[string]error
}

func (e *AllFailed) Error() string {
	return fmt.Sprintf("all %d relays failed", len(e.PerTarget))
}

// Broadcaster fans a signed event out to a relay set. Targets are
// independent, mutually distrusting, and individually unreliable: racing to
// the first acknowledgment gives the lowest visible latency while tolerating
// all but one of them being down.
type Broadcaster struct {
	publisher Publisher
	timeout   time.Duration // per-relay attempt timeout
	logger    *logger.Logger
}

// NewBroadcaster creates a broadcaster. The timeout bounds each per-relay
// attempt independently; it is supplied by the caller, not fixed here.
func NewBroadcaster(publisher Publisher, timeout time.Duration, logger *logger.Logger) *Broadcaster {
	return &Broadcaster{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger.WithComponent("broadcast"),
	}
}

// Broadcast publishes the event to every target concurrently and returns as
// soon as any single relay acknowledges. It returns *AllFailed only when
// every relay failed, with exactly one error per relay.
//
// Successive calls with the same event are independent publishes; nothing is
// deduplicated at this layer.
func (b *Broadcaster) Broadcast(ctx context.Context, ev *nostr.Event, targets []string) (*Outcome, error) {
	if len(targets) == 0 {
		return nil, errors.New("no broadcast targets configured")
	}

	seen := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		if _, ok := seen[target]; ok {
			return nil, fmt.Errorf("duplicate broadcast target %q", target)
		}
		seen[target] = struct{}{}
	}

	log := b.logger.WithContext(logger.WithEventID(ctx, ev.ID))
	start := time.Now()

	ops := make([]func(context.Context) (string, error), len(targets))
	for i, target := range targets {
		target := target
		ops[i] = func(ctx context.Context) (string, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			if err := b.publisher.Publish(attemptCtx, target, ev); err != nil {
				return "", err
			}
			return target, nil
		}
	}

	acked, _, err := First(ctx, ops)
	if err != nil {
		var failed *AllFailedError
		if errors.As(err, &failed) {
			perTarget := make(map[string]error, len(targets))
			for i, target := range targets {
				perTarget[target] = failed.Errs[i]
			}

			for target, targetErr := range perTarget {
				log.Warn("relay publish failed",
					slog.String("relay", target),
					slog.String("error", targetErr.Error()))
			}

			metrics.BroadcastPublishes.WithLabelValues(metrics.OutcomeAllFailed).Inc()
			return nil, &AllFailed{PerTarget: perTarget}
		}
		return nil, err
	}

	elapsed := time.Since(start)

	log.Info("broadcast acknowledged",
		slog.String("relay", acked),
		slog.Duration("elapsed", elapsed),
		slog.Int("targets", len(targets)))

	metrics.BroadcastPublishes.WithLabelValues(metrics.OutcomeAcked).Inc()
	metrics.BroadcastAckSeconds.Observe(elapsed.Seconds())

	return &Outcome{AckedBy: acked, Elapsed: elapsed}, nil
}
