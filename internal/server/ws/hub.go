// Package ws bridges the Redis opportunity channel to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin filtering happens in the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Bus is the subscription side of the opportunity signal bus.
type Bus interface {
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// Hub fans opportunity payloads from the signal bus out to every connected
// WebSocket client. Clients are read-only consumers; a client that cannot
// keep up has frames dropped rather than stalling the broadcast.
type Hub struct {
	bus       Bus
	pair      string
	startedAt time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	conns   map[*conn]struct{}
	stopped bool
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewHub(bus Bus, pair string, logger *slog.Logger) *Hub {
	return &Hub{
		bus:       bus,
		pair:      pair,
		startedAt: time.Now().UTC(),
		logger:    logger.With(slog.String("component", "ws")),
		conns:     make(map[*conn]struct{}),
	}
}

// Run subscribes to the bus and broadcasts until the context is cancelled,
// then closes every connected client.
func (h *Hub) Run(ctx context.Context) error {
	ch, err := h.bus.Subscribe(ctx)
	if err != nil {
		h.logger.Error("subscribe to opportunity channel", slog.Any("error", err))
		return err
	}
	h.logger.Info("subscribed to opportunity channel")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				h.logger.Warn("opportunity subscription closed")
				h.shutdown()
				return nil
			}
			h.broadcast(envelope("opportunity", json.RawMessage(data)))
		}
	}
}

func (h *Hub) broadcast(frame []byte) {
	if frame == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("dropping frame for slow client")
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for c := range h.conns {
		close(c.send)
		delete(h.conns, c)
	}
}

func (h *Hub) attach(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.conns[c] = struct{}{}
	h.logger.Info("client connected", slog.Int("clients", len(h.conns)))
	return true
}

func (h *Hub) detach(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
		h.logger.Info("client disconnected", slog.Int("clients", len(h.conns)))
	}
}

// HandleWS upgrades the request and starts the client's read and write
// loops.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.Any("error", err))
		return
	}

	c := &conn{ws: ws, send: make(chan []byte, sendBufferSize)}
	if !h.attach(c) {
		ws.Close()
		return
	}

	// Greet with a status frame so clients can mark the stream healthy
	// before the first opportunity arrives.
	uptime := int64(time.Since(h.startedAt).Seconds())
	status := envelope("status", map[string]any{
		"pair":           h.pair,
		"connected":      true,
		"uptime_seconds": uptime,
	})
	select {
	case c.send <- status:
	default:
	}

	go h.writeLoop(c)
	go h.readLoop(c)
}

// readLoop drains the connection so control frames are processed; data
// frames from clients are discarded.
func (h *Hub) readLoop(c *conn) {
	defer func() {
		h.detach(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("unexpected close", slog.Any("error", err))
			}
			return
		}
	}
}

// writeLoop forwards frames to the socket and keeps the connection alive
// with periodic pings.
func (h *Hub) writeLoop(c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// envelope wraps a payload in the {"type", "payload"} frame shape shared by
// all stream messages. Returns nil on marshal failure.
func envelope(typ string, payload any) []byte {
	frame, err := json.Marshal(map[string]any{
		"type":    typ,
		"payload": payload,
	})
	if err != nil {
		return nil
	}
	return frame
}
