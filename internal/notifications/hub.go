package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"quill/internal/middleware"
	"quill/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Default connection caps.
const (
	DefaultMaxPerUser = 12
	DefaultMaxTotal   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
	ErrHubClosed  = errors.New("hub is shut down")
)

// Hub tracks the websocket subscribers of this instance and fans post events
// out to them.
type Hub struct {
	maxPerUser int
	maxTotal   int

	mu     sync.RWMutex
	byUser map[uint]map[*Client]struct{}
	count  int
	closed bool
}

// NewHub returns an empty hub with the default connection caps.
func NewHub() *Hub {
	return &Hub{
		maxPerUser: DefaultMaxPerUser,
		maxTotal:   DefaultMaxTotal,
		byUser:     make(map[uint]map[*Client]struct{}),
	}
}

// Name labels this hub in metrics.
func (h *Hub) Name() string { return "post_events" }

// Register adds a subscriber for userID, enforcing the per-user and total caps.
func (h *Hub) Register(userID uint, sock socket) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return nil, ErrHubClosed
	case h.count >= h.maxTotal:
		return nil, ErrServerFull
	case len(h.byUser[userID]) >= h.maxPerUser:
		return nil, ErrUserFull
	}

	set := h.byUser[userID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.byUser[userID] = set
	}
	client := newClient(h, sock, userID)
	set[client] = struct{}{}
	h.count++
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes client and closes its queue. Repeated calls are no-ops.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.byUser[client.UserID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.byUser, client.UserID)
	}
	h.count--
	observability.WebSocketConnectionsTotal.Dec()
	client.close()
}

// ConnectionCount returns the number of live subscribers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// BroadcastAll queues message for every subscriber.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.byUser {
		for client := range set {
			client.TrySend(message)
		}
	}
}

// StartWiring feeds events from the shared Redis channel into BroadcastAll,
// so every instance's subscribers see every instance's writes.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPostEventSubscriber(ctx, func(payload string) {
		h.BroadcastAll([]byte(payload))
	})
}

// Shutdown closes every subscriber with a going-away frame and refuses new ones.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	goodbye := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
	for userID, set := range h.byUser {
		for client := range set {
			if client.sock != nil {
				if err := client.sock.WriteMessage(websocket.CloseMessage, goodbye); err != nil {
					middleware.Logger.Warn("websocket close frame failed",
						slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
				}
				_ = client.sock.Close()
			}
			client.close()
			observability.WebSocketConnectionsTotal.Dec()
		}
	}
	h.byUser = make(map[uint]map[*Client]struct{})
	h.count = 0
	return nil
}
