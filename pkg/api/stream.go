package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmax-ai/spawnlord/pkg/engine"
	"github.com/rmax-ai/spawnlord/pkg/spawn"
)

const (
	pingInterval = 10 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
)

// Hub fans driver activity out to websocket subscribers. It is registered as
// a driver observer; outcomes where nothing happened are not sent.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  slog.Default(),
		clients: make(map[*streamClient]struct{}),
	}
}

func (h *Hub) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) OnBind(_ context.Context, id string, err error) {
	msg := StreamMessage{Type: StreamTypeBind, SchedulerID: id, Ts: time.Now().UTC()}
	if err != nil {
		msg.Error = err.Error()
	}
	h.broadcast(msg)
}

func (h *Hub) OnOutcome(_ context.Context, id string, out spawn.Outcome) {
	if out.Empty() {
		return
	}
	h.broadcast(StreamMessage{Type: StreamTypeOutcome, SchedulerID: id, Ts: time.Now().UTC(), Outcome: &out})
}

func (h *Hub) OnSpawningChanged(_ context.Context, id string, enabled bool) {
	h.broadcast(StreamMessage{Type: StreamTypeSpawning, SchedulerID: id, Ts: time.Now().UTC(), SpawningEnabled: &enabled})
}

func (h *Hub) broadcast(msg StreamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("stream_marshal_failed", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow subscriber; the frame is dropped rather than stalling the driver.
			h.logger.Warn("stream_frame_dropped", "remote", c.conn.RemoteAddr().String())
		}
	}
}

// ServeHTTP upgrades the request and streams until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("stream_upgrade_failed", "error", err)
		return
	}
	c := &streamClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("stream_client_connected", "remote", conn.RemoteAddr().String())

	go c.writePump(h.logger)
	c.readPump(h)
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// readPump only services control frames; subscribers do not send data.
func (c *streamClient) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("stream_client_closed", "error", err)
			}
			return
		}
	}
}

func (c *streamClient) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("stream_write_failed", "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

var _ engine.Observer = (*Hub)(nil)
