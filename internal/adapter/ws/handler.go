// Package ws streams plan execution events to connected dashboard
// clients over WebSocket: plan and task status changes, phase
// boundaries, detected conflicts, and applied rebalancing moves.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the wire envelope: an event type from events.go and its
// JSON payload.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// client is one subscribed dashboard connection.
type client struct {
	sock   *websocket.Conn
	remote string
	cancel context.CancelFunc
}

// Hub fans plan events out to every subscribed client. Clients only
// listen; anything they send is drained and dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// HandleWS upgrades the request and subscribes the connection to the
// event stream until the peer goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checks live in the CORS middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{sock: sock, remote: r.RemoteAddr, cancel: cancel}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("event stream subscribed", "remote", c.remote)
	go h.drain(ctx, c)
}

// drain consumes inbound frames so pings are answered and a closed
// peer is noticed, then unsubscribes the client.
func (h *Hub) drain(ctx context.Context, c *client) {
	defer func() {
		h.unsubscribe(c)
		_ = c.sock.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		if _, _, err := c.sock.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast delivers one message to every subscribed client. Clients
// whose write fails are unsubscribed rather than retried; a dashboard
// that reconnects gets the live stream from that point on.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal ws message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if err := c.sock.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("event stream write failed", "remote", c.remote, "error", err)
			go h.unsubscribe(c)
		}
	}
}

// ConnectionCount reports how many clients are subscribed.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) unsubscribe(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		c.cancel()
		delete(h.clients, c)
		slog.Info("event stream unsubscribed", "remote", c.remote)
	}
}
