package nostr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/malkrite/yakiwi/internal/logger"
)

var upgrader = websocket.Upgrader{}

// newFakeRelay starts a websocket server that runs respond against each
// incoming EVENT frame and returns its ws:// URL.
func newFakeRelay(t *testing.T, respond func(conn *websocket.Conn, ev *Event)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var frame []json.RawMessage
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if len(frame) != 2 {
				continue
			}

			var label string
			json.Unmarshal(frame[0], &label)
			if label != "EVENT" {
				continue
			}

			var ev Event
			if err := json.Unmarshal(frame[1], &ev); err != nil {
				continue
			}
			respond(conn, &ev)
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testEvent() *Event {
	return &Event{
		ID:      "f1e2d3",
		PubKey:  "pubkey",
		Kind:    1,
		Tags:    []Tag{},
		Content: "hello relay",
		Sig:     "sig",
	}
}

func TestPublish_Acknowledged(t *testing.T) {
	url := newFakeRelay(t, func(conn *websocket.Conn, ev *Event) {
		conn.WriteJSON([]interface{}{"OK", ev.ID, true, ""})
	})

	client := NewRelayClient(logger.New(logger.Config{}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Publish(ctx, url, testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPublish_Rejected(t *testing.T) {
	url := newFakeRelay(t, func(conn *websocket.Conn, ev *Event) {
		conn.WriteJSON([]interface{}{"OK", ev.ID, false, "blocked: spam"})
	})

	client := NewRelayClient(logger.New(logger.Config{}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.Publish(ctx, url, testEvent())
	if err == nil {
		t.Fatal("expected error for rejected event")
	}
	if !strings.Contains(err.Error(), "blocked: spam") {
		t.Errorf("rejection reason must survive: %v", err)
	}
}

func TestPublish_SkipsInterleavedFrames(t *testing.T) {
	// NOTICE frames and OKs for other events must not resolve the attempt.
	url := newFakeRelay(t, func(conn *websocket.Conn, ev *Event) {
		conn.WriteJSON([]interface{}{"NOTICE", "rate limited soon"})
		conn.WriteJSON([]interface{}{"OK", "someone-elses-event", true, ""})
		conn.WriteJSON([]interface{}{"OK", ev.ID, true, ""})
	})

	client := NewRelayClient(logger.New(logger.Config{}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Publish(ctx, url, testEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPublish_SilentRelayTimesOut(t *testing.T) {
	url := newFakeRelay(t, func(conn *websocket.Conn, ev *Event) {
		// Never acknowledge.
	})

	client := NewRelayClient(logger.New(logger.Config{}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := client.Publish(ctx, url, testEvent())
	if err == nil {
		t.Fatal("expected timeout error from silent relay")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("publish did not respect the deadline: %v", elapsed)
	}
}

func TestPublish_UnreachableRelay(t *testing.T) {
	client := NewRelayClient(logger.New(logger.Config{}))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := client.Publish(ctx, "ws://127.0.0.1:1", testEvent())
	if err == nil {
		t.Fatal("expected dial error")
	}
}
