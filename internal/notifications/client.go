package notifications

import (
	"log/slog"
	"sync"
	"time"

	"quill/internal/middleware"
	"quill/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeTimeout = 10 * time.Second
	// A peer that has not answered a ping within idleTimeout is dropped.
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10
	// The feed is server to client; inbound frames are only control frames.
	readLimit = 1024
	queueSize = 64
)

var droppedNotice = []byte(`{"type":"messages_dropped","reason":"buffer_full"}`)

// socket is the subset of *websocket.Conn the pumps use.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one websocket subscriber. The hub owns its queue.
type Client struct {
	hub    *Hub
	sock   socket
	UserID uint

	mu     sync.Mutex
	closed bool
	queue  chan []byte
}

func newClient(hub *Hub, sock socket, userID uint) *Client {
	return &Client{hub: hub, sock: sock, UserID: userID, queue: make(chan []byte, queueSize)}
}

// TrySend queues message without blocking. On a full queue the message is
// dropped and the client is told, once, so it can refetch.
func (c *Client) TrySend(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		return
	}
	select {
	case c.queue <- message:
		return
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
	middleware.Logger.Warn("websocket queue full, message dropped", slog.Uint64("user_id", uint64(c.UserID)))
	select {
	case c.queue <- droppedNotice:
	default:
	}
}

// close ends the queue; WritePump then sends a close frame and exits.
// It reports whether this call did the closing.
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.queue)
	return true
}

// ReadPump consumes inbound frames so pongs are processed, and unregisters
// the client once the peer disconnects or stops answering pings.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.sock.Close()
	}()

	c.sock.SetReadLimit(readLimit)
	_ = c.sock.SetReadDeadline(time.Now().Add(idleTimeout))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		_, _, err := c.sock.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
			middleware.Logger.Warn("websocket read failed",
				slog.Uint64("user_id", uint64(c.UserID)), slog.String("error", err.Error()))
		}
		return
	}
}

func (c *Client) write(kind int, payload []byte) error {
	if err := c.sock.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.sock.WriteMessage(kind, payload)
}

// WritePump delivers queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.sock.Close()
	}()

	for {
		select {
		case msg, ok := <-c.queue:
			if !ok {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
