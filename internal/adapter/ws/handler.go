// Package ws implements the WebSocket event feed for connected clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// writeTimeout bounds a single broadcast write. A client that cannot
// keep up is dropped instead of stalling the hub.
const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket frames.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	TS      int64           `json:"ts"`
}

// client is one subscriber on the feed.
type client struct {
	sock *websocket.Conn
	stop context.CancelFunc
}

// send pushes one frame with the hub's write deadline applied.
func (c *client) send(ctx context.Context, frame []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.sock.Write(wctx, websocket.MessageText, frame)
}

// drainReads blocks until the peer closes or the context ends. The feed
// is one-way, so reads only surface pings and the eventual close.
func (c *client) drainReads(ctx context.Context) {
	for {
		if _, _, err := c.sock.Read(ctx); err != nil {
			return
		}
	}
}

// Hub tracks the active WebSocket clients and fans frames out to them.
// Writes happen outside the hub lock so one stuck client cannot block
// connects and disconnects.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// HandleWS upgrades the request and registers the client with the hub.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, stop := context.WithCancel(r.Context())
	c := &client{sock: sock, stop: stop}
	slog.Info("websocket connected", "remote", r.RemoteAddr, "clients", h.add(c))

	go func() {
		c.drainReads(ctx)
		h.remove(c)
		_ = sock.Close(websocket.StatusNormalClosure, "")
	}()
}

// Broadcast sends a frame to every connected client. A failed or timed
// out write drops that client; it never blocks the others.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	for _, c := range h.snapshot() {
		if err := c.send(ctx, frame); err != nil {
			slog.Debug("websocket write failed, dropping client", "error", err)
			h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// add registers c and returns the new client total.
func (h *Hub) add(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

// snapshot copies the current client set so callers can iterate without
// holding the lock.
func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		c.stop()
		delete(h.clients, c)
		slog.Info("websocket disconnected", "clients", len(h.clients))
	}
}
