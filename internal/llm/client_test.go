package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/malkrite/yakiwi/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{})
}

// fakeCompletions serves a canned chat-completions response and captures the
// last request body for assertions.
type fakeCompletions struct {
	status   int
	body     string
	requests []map[string]interface{}
}

func (f *fakeCompletions) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		f.requests = append(f.requests, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		w.Write([]byte(f.body))
	}
}

func chatBody(content string) string {
	msg := map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"finish_reason": "stop",
				"message":       map[string]interface{}{"content": content},
			},
		},
	}
	raw, _ := json.Marshal(msg)
	return string(raw)
}

func newTestClient(t *testing.T, fake *fakeCompletions) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "test-model", "test-classifier", 5*time.Second, testLogger()), srv
}

func TestClassify(t *testing.T) {
	fake := &fakeCompletions{status: 200, body: chatBody(`{"build_request": true}`)}
	client, _ := newTestClient(t, fake)

	build, err := client.Classify(context.Background(), "Build a widget that tells jokes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !build {
		t.Error("expected build_request=true")
	}

	if len(fake.requests) != 1 {
		t.Fatalf("expected 1 upstream call, got %d", len(fake.requests))
	}
	if model := fake.requests[0]["model"]; model != "test-classifier" {
		t.Errorf("classification must use the classifier model, got %v", model)
	}
	if fake.requests[0]["response_format"] == nil {
		t.Error("expected structured output response_format")
	}
}

func TestAnswerFromDocs(t *testing.T) {
	fake := &fakeCompletions{
		status: 200,
		body:   chatBody(`{"answer": "You will receive a 429 Too Many Requests status code.", "citation": "Section 4. Rate Limiting"}`),
	}
	client, _ := newTestClient(t, fake)

	answer, err := client.AnswerFromDocs(context.Background(), "What status code indicates a rate limit?", "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer.Text, "429") {
		t.Errorf("unexpected answer: %s", answer.Text)
	}
	if answer.Citation != "Section 4. Rate Limiting" {
		t.Errorf("unexpected citation: %s", answer.Citation)
	}
}

func TestAnswerFromDocs_MissingAnswerFieldIsMalformed(t *testing.T) {
	// The required answer field is absent entirely: a schema violation, not
	// a partial response.
	fake := &fakeCompletions{status: 200, body: chatBody(`{"citation": "Section 2"}`)}
	client, _ := newTestClient(t, fake)

	answer, err := client.AnswerFromDocs(context.Background(), "How do I authenticate?", "docs")
	if KindOf(err) != KindMalformedOutput {
		t.Fatalf("expected malformed output, got %v", err)
	}
	if answer != nil {
		t.Error("no partial answer on malformed output")
	}
}

func TestAnswerFromDocs_EmptyAnswerIsEmptyOutput(t *testing.T) {
	fake := &fakeCompletions{status: 200, body: chatBody(`{"answer": "  "}`)}
	client, _ := newTestClient(t, fake)

	_, err := client.AnswerFromDocs(context.Background(), "How do I authenticate?", "docs")
	if KindOf(err) != KindEmptyOutput {
		t.Fatalf("expected empty output, got %v", err)
	}
}

func TestRefusalIsDistinguishable(t *testing.T) {
	body := `{"choices":[{"finish_reason":"stop","message":{"content":"","refusal":"I can't help with that."}}]}`
	fake := &fakeCompletions{status: 200, body: body}
	client, _ := newTestClient(t, fake)

	_, err := client.AnswerFromDocs(context.Background(), "Do something disallowed please", "docs")
	if KindOf(err) != KindRefused {
		t.Fatalf("expected refused, got %v", err)
	}
}

func TestUpstreamErrorsAreUnavailable(t *testing.T) {
	for _, status := range []int{429, 500, 503} {
		fake := &fakeCompletions{status: status, body: `{"error":{"message":"overloaded"}}`}
		client, _ := newTestClient(t, fake)

		_, err := client.Classify(context.Background(), "What is a widget?")
		if KindOf(err) != KindUnavailable {
			t.Errorf("status %d: expected unavailable, got %v", status, err)
		}
	}
}

func TestUndecodableContentIsMalformed(t *testing.T) {
	fake := &fakeCompletions{status: 200, body: chatBody(`this is not json`)}
	client, _ := newTestClient(t, fake)

	_, err := client.Classify(context.Background(), "What is a widget?")
	if KindOf(err) != KindMalformedOutput {
		t.Fatalf("expected malformed output, got %v", err)
	}
}

func TestGenerateWidget(t *testing.T) {
	fake := &fakeCompletions{
		status: 200,
		body: chatBody(`{
			"explanation": "Generates a UUID at the press of a button.",
			"widget_name": "UUID Generator",
			"html_code": "<html><body><script>crypto.randomUUID()</script></body></html>",
			"widget_kind": 31337
		}`),
	}
	client, _ := newTestClient(t, fake)

	widget, err := client.GenerateWidget(context.Background(), "Build a widget that generates a UUID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if widget.Name != "UUID Generator" || widget.Kind != 31337 {
		t.Errorf("unexpected widget: %+v", widget)
	}
	if !strings.Contains(widget.Source, "<html>") {
		t.Errorf("unexpected widget source: %s", widget.Source)
	}
}

func TestGenerateWidget_MissingFieldsAreMalformed(t *testing.T) {
	fake := &fakeCompletions{
		status: 200,
		body:   chatBody(`{"explanation": "half a widget", "widget_name": "Partial"}`),
	}
	client, _ := newTestClient(t, fake)

	_, err := client.GenerateWidget(context.Background(), "Build something")
	if KindOf(err) != KindMalformedOutput {
		t.Fatalf("expected malformed output, got %v", err)
	}
}

func TestSummarizeDocs(t *testing.T) {
	fake := &fakeCompletions{status: 200, body: chatBody(`{"summary": "A REST API with bearer auth and rate limits."}`)}
	client, _ := newTestClient(t, fake)

	summary, err := client.SummarizeDocs(context.Background(), "docs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(summary, "REST API") {
		t.Errorf("unexpected summary: %s", summary)
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, "test-key", "test-model", "", time.Second, testLogger())

	_, err := client.Classify(context.Background(), "What is a widget?")
	if KindOf(err) != KindUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
