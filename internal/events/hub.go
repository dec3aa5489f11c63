// Package events provides the live session event stream: a hub mapping dojo
// session IDs to subscribed WebSocket connections, fed by the orchestrator
// after each persisted mutation.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Event kinds published by the orchestrator.
const (
	KindTurn      = "turn"
	KindAdvance   = "advance"
	KindCompleted = "completed"
	KindAbandoned = "abandoned"
)

// Event is one session lifecycle notification.
type Event struct {
	Kind      string      `json:"kind"`
	SessionID string      `json:"sessionId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const publishTimeout = 5 * time.Second

// Hub manages active WebSocket subscriptions per session.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Subscribe adds a WebSocket connection to a session's subscriber set.
func (h *Hub) Subscribe(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[sessionID]; !exists {
		h.active[sessionID] = make(map[*websocket.Conn]struct{})
	}
	h.active[sessionID][conn] = struct{}{}
	slog.Info("event subscriber registered", "session_id", sessionID)
}

// Unsubscribe removes a WebSocket connection from a session's subscriber set.
func (h *Hub) Unsubscribe(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.active[sessionID]; ok {
		if _, exists := conns[conn]; exists {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.active, sessionID)
			}
			slog.Info("event subscriber unregistered", "session_id", sessionID)
		}
	}
}

// Publish sends an event to every subscriber of the session. Write failures
// are logged and the connection dropped from the set; publishing never blocks
// the caller beyond the per-write timeout.
func (h *Hub) Publish(sessionID, kind string, payload interface{}) {
	event := Event{
		Kind:      kind,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal session event", "kind", kind, "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.active[sessionID]))
	for conn := range h.active[sessionID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("event write failed, dropping subscriber", "session_id", sessionID, "error", err)
			h.Unsubscribe(sessionID, conn)
		}
	}
}
