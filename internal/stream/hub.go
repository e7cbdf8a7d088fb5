package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// Token auth runs before the upgrade, so origins are not restricted here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans broadcast payloads out to websocket subscribers.
type Hub struct {
	mu   sync.Mutex
	subs []chan []byte
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subs {
		if sub == ch {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast marshals v and hands it to every subscriber.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal broadcast payload", "error", err)
		return
	}
	h.mu.Lock()
	for _, ch := range h.subs {
		select {
		case ch <- data:
		default: // Don't block if subscriber is slow
		}
	}
	h.mu.Unlock()
}

// ServeWS upgrades the request and streams broadcasts until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	slog.Info("WebSocket client connected", "remote", r.RemoteAddr)

	done := make(chan struct{})

	// Read pump (handle close)
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Write pump
	for {
		select {
		case data, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
