package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/malkrite/yakiwi/internal/assistant"
	"github.com/malkrite/yakiwi/internal/broadcast"
	"github.com/malkrite/yakiwi/internal/logger"
	"github.com/malkrite/yakiwi/internal/nostr"
)

// MinQueryLen is the minimum accepted query length in bytes.
const MinQueryLen = 10

const widgetIconURL = "https://yakihonne.com/favicon.ico"

// ValidationError rejects input before any downstream call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrUnsupportedWidgetKind rejects a widget artifact whose kind tag is not in
// the supported set.
var ErrUnsupportedWidgetKind = errors.New("unsupported widget kind")

// Router routes one query to one generation path.
type Router interface {
	Route(ctx context.Context, query assistant.Query) (*assistant.Response, error)
}

// Broadcaster fans a signed event out to the relay set.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev *nostr.Event, targets []string) (*broadcast.Outcome, error)
}

// Summarizer produces a documentation summary.
type Summarizer interface {
	SummarizeDocs(ctx context.Context, documentation string) (string, error)
}

// ReplyFunc delivers a condensed response rendering back to an embedding
// host destination.
type ReplyFunc func(ctx context.Context, origin, content string) error

// Service is the top-level session orchestrator: it validates raw input,
// invokes the router, and exposes the two explicit publish actions. Broadcast
// never happens automatically after a question; it is always a separate user
// action.
type Service struct {
	router        Router
	signing       *nostr.Gateway
	broadcaster   Broadcaster
	summarizer    Summarizer
	documentation string
	relays        []string
	bridge        *HostBridge
	reply         ReplyFunc
	logger        *logger.Logger

	mu          sync.Mutex
	replyOrigin string
}

// ServiceConfig carries the orchestrator's injected dependencies.
type ServiceConfig struct {
	Router        Router
	Signing       *nostr.Gateway
	Broadcaster   Broadcaster
	Summarizer    Summarizer
	Documentation string
	Relays        []string
	Bridge        *HostBridge // optional
	Reply         ReplyFunc   // optional
	Logger        *logger.Logger
}

// NewService creates the session orchestrator.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		router:        cfg.Router,
		signing:       cfg.Signing,
		broadcaster:   cfg.Broadcaster,
		summarizer:    cfg.Summarizer,
		documentation: cfg.Documentation,
		relays:        cfg.Relays,
		bridge:        cfg.Bridge,
		reply:         cfg.Reply,
		logger:        cfg.Logger.WithComponent("session"),
	}
}

// DeliverHost forwards one host message into the bridge without blocking.
// It reports false when no bridge is attached, the bridge is closed, or the
// buffer is full.
func (s *Service) DeliverHost(msg HostMessage) bool {
	if s.bridge == nil {
		return false
	}
	return s.bridge.Deliver(msg)
}

// ConsumeHost drains pending host messages and returns the seed query, if
// any. It records the announced reply destination for later deliveries. Call
// it at session start; the bridge is not listened to in between.
func (s *Service) ConsumeHost() (string, bool) {
	if s.bridge == nil {
		return "", false
	}

	seed := ""
	for _, msg := range s.bridge.Drain() {
		switch msg.Kind {
		case HostSeedQuery:
			seed = msg.Text
		case HostReplyDestination:
			s.mu.Lock()
			s.replyOrigin = msg.Origin
			s.mu.Unlock()
		}
	}

	return seed, seed != ""
}

// Close tears down the host bridge, if one is attached.
func (s *Service) Close() {
	if s.bridge != nil {
		s.bridge.Close()
	}
}

// Ask validates the raw input and routes it. Validation failures are returned
// before any network call.
func (s *Service) Ask(ctx context.Context, raw string) (*assistant.Response, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ValidationError{Message: "Question cannot be empty."}
	}
	if len(trimmed) < MinQueryLen {
		return nil, &ValidationError{Message: fmt.Sprintf("Question must be at least %d characters.", MinQueryLen)}
	}

	resp, err := s.router.Route(ctx, assistant.Query{Text: trimmed})
	if err != nil {
		s.logger.LogError(ctx, err, "routing failed")
		return nil, err
	}

	s.maybeReplyToHost(ctx, resp)

	return resp, nil
}

// maybeReplyToHost delivers a condensed rendering of the response to the
// embedding host, when a destination was announced. Failures are logged, not
// surfaced: the host channel is optional by contract.
func (s *Service) maybeReplyToHost(ctx context.Context, resp *assistant.Response) {
	s.mu.Lock()
	origin := s.replyOrigin
	s.mu.Unlock()

	if s.reply == nil || origin == "" {
		return
	}

	content := resp.Answer
	if resp.CodeSnippet != nil {
		content += fmt.Sprintf("\n\n```\n%s\n```", *resp.CodeSnippet)
	}

	if err := s.reply(ctx, origin, content); err != nil {
		s.logger.WithContext(ctx).Warn("host reply failed",
			slog.String("origin", origin),
			slog.String("error", err.Error()))
	}
}

// Share renders a question and its response as a text note, signs it, and
// broadcasts it to the relay set.
func (s *Service) Share(ctx context.Context, question string, resp *assistant.Response) (*broadcast.Outcome, error) {
	signed, err := s.signing.SignEvent(ctx, func() (*nostr.EventTemplate, error) {
		content := fmt.Sprintf("Q: %s\n\nA: %s", question, resp.Answer)

		// Widget source is published through PublishWidget, not inlined here.
		if resp.CodeSnippet != nil && resp.Artifact == nil {
			content += fmt.Sprintf("\n\n```\n%s\n```", *resp.CodeSnippet)
		}
		if resp.Citation != nil {
			content += "\n\nCitation: " + *resp.Citation
		}

		return &nostr.EventTemplate{
			Kind:      1,
			CreatedAt: time.Now().Unix(),
			Tags:      []nostr.Tag{},
			Content:   content,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return s.broadcaster.Broadcast(ctx, signed, s.relays)
}

// PublishWidget validates the artifact's kind tag, signs the widget event,
// and broadcasts it. The widget source travels as a data URI in the event's
// url tag.
func (s *Service) PublishWidget(ctx context.Context, artifact *assistant.WidgetArtifact) (*broadcast.Outcome, error) {
	if !assistant.ValidWidgetKind(artifact.Kind) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedWidgetKind, artifact.Kind)
	}

	signed, err := s.signing.SignEvent(ctx, func() (*nostr.EventTemplate, error) {
		dataURI := "data:text/html;charset=utf-8," + url.PathEscape(artifact.SourceCode)

		return &nostr.EventTemplate{
			Kind:      artifact.Kind,
			CreatedAt: time.Now().Unix(),
			Tags: []nostr.Tag{
				{"d", artifact.Name},
				{"url", dataURI},
				{"image", widgetIconURL},
			},
			Content: "Widget: " + artifact.Name,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return s.broadcaster.Broadcast(ctx, signed, s.relays)
}

// Summarize returns a generated summary of the documentation corpus.
func (s *Service) Summarize(ctx context.Context) (string, error) {
	return s.summarizer.SummarizeDocs(ctx, s.documentation)
}
