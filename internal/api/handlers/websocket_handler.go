package handlers

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/qda-agent/backend/internal/coding"
	"github.com/qda-agent/backend/pkg/logger"
)

// ProgressHub fans analysis progress events out to connected websocket
// clients. Slow or broken connections are dropped rather than blocking the
// analysis run.
type ProgressHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *ProgressHub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *ProgressHub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *ProgressHub) Broadcast(event coding.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		if err := c.WriteJSON(wsMessage{Type: "progress", Event: event}); err != nil {
			logger.Warn("Dropping websocket client", zap.Error(err))
			c.Close()
			delete(h.conns, c)
		}
	}
}

type wsMessage struct {
	Type  string               `json:"type"`
	Event coding.ProgressEvent `json:"event"`
}

type WebSocketHandler struct {
	hub *ProgressHub
}

func NewWebSocketHandler(hub *ProgressHub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleConnection keeps the connection subscribed to progress events until
// the client disconnects. Incoming messages are ignored.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")
	h.hub.register(c)

	defer func() {
		h.hub.unregister(c)
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
