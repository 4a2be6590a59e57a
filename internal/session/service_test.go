package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/malkrite/yakiwi/internal/assistant"
	"github.com/malkrite/yakiwi/internal/broadcast"
	"github.com/malkrite/yakiwi/internal/logger"
	"github.com/malkrite/yakiwi/internal/nostr"
)

const testSecretHex = "91ba716fa9e7ea2fcbad360cf4f8e0d312f73984da63d90f524ad61a6a1e7dbe"

func testLogger() *logger.Logger {
	return logger.New(logger.Config{})
}

type mockRouter struct {
	resp  *assistant.Response
	err   error
	calls int
}

func (m *mockRouter) Route(ctx context.Context, query assistant.Query) (*assistant.Response, error) {
	m.calls++
	return m.resp, m.err
}

type mockBroadcaster struct {
	outcome *broadcast.Outcome
	err     error
	calls   int
	lastEv  *nostr.Event
	targets []string
}

func (m *mockBroadcaster) Broadcast(ctx context.Context, ev *nostr.Event, targets []string) (*broadcast.Outcome, error) {
	m.calls++
	m.lastEv = ev
	m.targets = targets
	return m.outcome, m.err
}

type mockSummarizer struct {
	summary string
	err     error
}

func (m *mockSummarizer) SummarizeDocs(ctx context.Context, documentation string) (string, error) {
	return m.summary, m.err
}

func newTestService(t *testing.T, cfg ServiceConfig) *Service {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testLogger()
	}
	if cfg.Signing == nil {
		signer, err := nostr.NewLocalSigner(testSecretHex)
		if err != nil {
			t.Fatalf("signer: %v", err)
		}
		cfg.Signing = nostr.NewGateway(signer)
	}
	if cfg.Relays == nil {
		cfg.Relays = []string{"wss://relay.example"}
	}
	return NewService(cfg)
}

func TestAsk_ValidationFailsFast(t *testing.T) {
	router := &mockRouter{}
	svc := newTestService(t, ServiceConfig{Router: router})

	cases := []string{"", "   ", "short", "\t\n hi \n"}
	for _, raw := range cases {
		_, err := svc.Ask(context.Background(), raw)

		var validation *ValidationError
		if !errors.As(err, &validation) {
			t.Errorf("input %q: expected ValidationError, got %v", raw, err)
		}
	}

	if router.calls != 0 {
		t.Errorf("router must not be invoked for invalid input, got %d calls", router.calls)
	}
}

func TestAsk_TrimsBeforeValidation(t *testing.T) {
	router := &mockRouter{resp: &assistant.Response{Answer: "yes"}}
	svc := newTestService(t, ServiceConfig{Router: router})

	// 10 bytes after trimming: passes.
	if _, err := svc.Ask(context.Background(), "  0123456789  "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if router.calls != 1 {
		t.Errorf("expected 1 route call, got %d", router.calls)
	}
}

func TestAsk_RoutingErrorPropagates(t *testing.T) {
	router := &mockRouter{err: errors.New("upstream down")}
	svc := newTestService(t, ServiceConfig{Router: router})

	resp, err := svc.Ask(context.Background(), "a perfectly valid question")
	if err == nil {
		t.Fatal("expected error")
	}
	if resp != nil {
		t.Error("no partial response on failure")
	}
}

func TestShare_SignsAndBroadcastsTextNote(t *testing.T) {
	citation := "Section 4: Rate Limiting"
	broadcaster := &mockBroadcaster{
		outcome: &broadcast.Outcome{AckedBy: "wss://relay.example", Elapsed: 40 * time.Millisecond},
	}
	svc := newTestService(t, ServiceConfig{Broadcaster: broadcaster})

	resp := &assistant.Response{
		Answer:   "You will receive a 429 status code.",
		Citation: &citation,
	}

	outcome, err := svc.Share(context.Background(), "What happens when I hit the rate limit?", resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.AckedBy != "wss://relay.example" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}

	if broadcaster.calls != 1 {
		t.Fatalf("expected 1 broadcast, got %d", broadcaster.calls)
	}
	ev := broadcaster.lastEv
	if ev.Kind != 1 {
		t.Errorf("shared note must be kind 1, got %d", ev.Kind)
	}
	if ev.ID == "" || ev.Sig == "" {
		t.Error("broadcast event must be signed")
	}
	if !strings.Contains(ev.Content, "Q: What happens when I hit the rate limit?") {
		t.Errorf("note must carry the question: %s", ev.Content)
	}
	if !strings.Contains(ev.Content, "A: You will receive a 429 status code.") {
		t.Errorf("note must carry the answer: %s", ev.Content)
	}
	if !strings.Contains(ev.Content, "Citation: "+citation) {
		t.Errorf("note must carry the citation: %s", ev.Content)
	}
}

func TestShare_SnippetInlinedOnlyWithoutArtifact(t *testing.T) {
	snippet := "<html><body>widget</body></html>"
	broadcaster := &mockBroadcaster{outcome: &broadcast.Outcome{AckedBy: "wss://relay.example"}}
	svc := newTestService(t, ServiceConfig{Broadcaster: broadcaster})

	// With an artifact, the source belongs in the widget event, not the note.
	resp := &assistant.Response{
		Answer:      "Built it.",
		CodeSnippet: &snippet,
		Artifact: &assistant.WidgetArtifact{
			Name: "W", SourceCode: snippet, Kind: assistant.KindActionWidget,
		},
	}
	if _, err := svc.Share(context.Background(), "Build me a widget please", resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(broadcaster.lastEv.Content, snippet) {
		t.Error("widget source must not be inlined when an artifact exists")
	}

	// Without an artifact, the snippet is part of the story.
	resp.Artifact = nil
	if _, err := svc.Share(context.Background(), "Show me some example code", resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(broadcaster.lastEv.Content, snippet) {
		t.Error("snippet must be inlined when no artifact exists")
	}
}

func TestShare_NoSignerMeansNoBroadcastAttempt(t *testing.T) {
	broadcaster := &mockBroadcaster{}
	svc := newTestService(t, ServiceConfig{
		Broadcaster: broadcaster,
		Signing:     nostr.NewGateway(nil),
	})

	_, err := svc.Share(context.Background(), "A valid question here", &assistant.Response{Answer: "x"})
	if !errors.Is(err, nostr.ErrSignerUnavailable) {
		t.Fatalf("expected ErrSignerUnavailable, got %v", err)
	}
	if broadcaster.calls != 0 {
		t.Errorf("no broadcast without a signature, got %d calls", broadcaster.calls)
	}
}

func TestShare_BroadcastFailurePropagates(t *testing.T) {
	broadcaster := &mockBroadcaster{
		err: &broadcast.AllFailed{PerTarget: map[string]error{
			"wss://relay.example": errors.New("connection refused"),
		}},
	}
	svc := newTestService(t, ServiceConfig{Broadcaster: broadcaster})

	_, err := svc.Share(context.Background(), "A valid question here", &assistant.Response{Answer: "x"})

	var allFailed *broadcast.AllFailed
	if !errors.As(err, &allFailed) {
		t.Fatalf("expected AllFailed, got %v", err)
	}
}

func TestPublishWidget(t *testing.T) {
	broadcaster := &mockBroadcaster{outcome: &broadcast.Outcome{AckedBy: "wss://relay.example"}}
	svc := newTestService(t, ServiceConfig{Broadcaster: broadcaster})

	artifact := &assistant.WidgetArtifact{
		Name:       "UUID Generator",
		SourceCode: "<html><body><script>crypto.randomUUID()</script></body></html>",
		Kind:       assistant.KindActionWidget,
	}

	if _, err := svc.PublishWidget(context.Background(), artifact); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := broadcaster.lastEv
	if ev.Kind != assistant.KindActionWidget {
		t.Errorf("expected kind %d, got %d", assistant.KindActionWidget, ev.Kind)
	}

	tags := map[string]string{}
	for _, tag := range ev.Tags {
		if len(tag) >= 2 {
			tags[tag[0]] = tag[1]
		}
	}
	if tags["d"] != artifact.Name {
		t.Errorf("d tag must carry the widget name, got %q", tags["d"])
	}
	if !strings.HasPrefix(tags["url"], "data:text/html;charset=utf-8,") {
		t.Errorf("url tag must be a data URI, got %q", tags["url"])
	}
	if strings.Contains(tags["url"], "<html>") {
		t.Error("widget source must be percent-encoded in the data URI")
	}
	if tags["image"] == "" {
		t.Error("expected an image tag")
	}
}

func TestPublishWidget_UnsupportedKindRejectedBeforeSigning(t *testing.T) {
	broadcaster := &mockBroadcaster{}
	svc := newTestService(t, ServiceConfig{Broadcaster: broadcaster})

	artifact := &assistant.WidgetArtifact{Name: "W", SourceCode: "<html></html>", Kind: 12345}

	_, err := svc.PublishWidget(context.Background(), artifact)
	if !errors.Is(err, ErrUnsupportedWidgetKind) {
		t.Fatalf("expected ErrUnsupportedWidgetKind, got %v", err)
	}
	if broadcaster.calls != 0 {
		t.Errorf("rejected kind must not reach broadcast, got %d calls", broadcaster.calls)
	}
}

func TestSummarize(t *testing.T) {
	svc := newTestService(t, ServiceConfig{
		Summarizer:    &mockSummarizer{summary: "A short API overview."},
		Documentation: "docs",
	})

	summary, err := svc.Summarize(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "A short API overview." {
		t.Errorf("unexpected summary: %s", summary)
	}
}

func TestHostBridge(t *testing.T) {
	bridge := NewHostBridge(2)

	if !bridge.Deliver(HostMessage{Kind: HostSeedQuery, Text: "first seed question"}) {
		t.Error("delivery into empty bridge must succeed")
	}
	if !bridge.Deliver(HostMessage{Kind: HostReplyDestination, Origin: "https://host.example"}) {
		t.Error("delivery within buffer must succeed")
	}
	if bridge.Deliver(HostMessage{Kind: HostSeedQuery, Text: "overflow"}) {
		t.Error("delivery into full bridge must be dropped, not blocked")
	}

	msgs := bridge.Drain()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 drained messages, got %d", len(msgs))
	}

	if got := bridge.Drain(); len(got) != 0 {
		t.Errorf("second drain must be empty, got %d", len(got))
	}

	bridge.Close()
	bridge.Close() // idempotent
	if bridge.Deliver(HostMessage{Kind: HostSeedQuery, Text: "late"}) {
		t.Error("delivery after close must report false")
	}
}

func TestConsumeHost(t *testing.T) {
	bridge := NewHostBridge(4)
	bridge.Deliver(HostMessage{Kind: HostSeedQuery, Text: "first seed question"})
	bridge.Deliver(HostMessage{Kind: HostReplyDestination, Origin: "https://host.example"})
	bridge.Deliver(HostMessage{Kind: HostSeedQuery, Text: "last seed wins here"})

	var replies []string
	router := &mockRouter{resp: &assistant.Response{Answer: "the answer"}}
	svc := newTestService(t, ServiceConfig{
		Router: router,
		Bridge: bridge,
		Reply: func(ctx context.Context, origin, content string) error {
			replies = append(replies, origin+"|"+content)
			return nil
		},
	})
	defer svc.Close()

	seed, ok := svc.ConsumeHost()
	if !ok || seed != "last seed wins here" {
		t.Fatalf("expected last seed to win, got %q (%v)", seed, ok)
	}

	// With a recorded destination, answers flow back to the host.
	if _, err := svc.Ask(context.Background(), seed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "https://host.example|") {
		t.Errorf("expected one host reply, got %v", replies)
	}
}

func TestConsumeHost_NoBridge(t *testing.T) {
	svc := newTestService(t, ServiceConfig{Router: &mockRouter{}})

	if seed, ok := svc.ConsumeHost(); ok || seed != "" {
		t.Errorf("expected no seed without a bridge, got %q (%v)", seed, ok)
	}
}
