package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestSubscribeUnsubscribeLifecycle(t *testing.T) {
	hub := NewHub()
	conn := &websocket.Conn{}

	hub.Subscribe("sess-1", conn)
	if len(hub.active["sess-1"]) != 1 {
		t.Fatalf("subscribers = %d, want 1", len(hub.active["sess-1"]))
	}

	hub.Unsubscribe("sess-1", conn)
	if _, ok := hub.active["sess-1"]; ok {
		t.Error("empty subscriber set not removed")
	}

	// Unsubscribing an unknown connection is a no-op.
	hub.Unsubscribe("sess-1", conn)
	hub.Unsubscribe("never-seen", conn)
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub := NewHub()
	subscribed := make(chan struct{})
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		hub.Subscribe("sess-1", c)
		close(subscribed)
		<-done
		c.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	<-subscribed
	hub.Publish("sess-1", KindTurn, map[string]int{"turnCount": 1})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Kind != KindTurn || event.SessionID != "sess-1" {
		t.Errorf("event = %+v", event)
	}
	if event.Timestamp.IsZero() {
		t.Error("zero timestamp")
	}
}

func TestPublishToSessionWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	// Must not panic or block.
	hub.Publish("nobody-home", KindCompleted, nil)
}
