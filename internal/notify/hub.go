package notify

import (
	"encoding/json"
	"sync"

	"github.com/gmsas95/caretrack/internal/metrics"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub is a Sink that pushes notifications to every connected
// websocket client.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*websocket.Conn
	logger  *zap.Logger
}

// NewHub creates an empty websocket hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*websocket.Conn),
		logger:  logger,
	}
}

func (h *Hub) Name() string {
	return "websocket"
}

// Handle registers a connection and blocks until it closes. Incoming
// frames are read and discarded so pings keep the connection alive.
func (h *Hub) Handle(c *websocket.Conn) {
	id := uuid.NewString()

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()

	metrics.Default().IncrementActiveConnections()
	h.logger.Debug("websocket client connected", zap.String("client", id))

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()

		metrics.Default().DecrementActiveConnections()
		h.logger.Debug("websocket client disconnected", zap.String("client", id))
		c.Close()
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// Send broadcasts a notification to all connected clients. The write
// lock serializes broadcasts: the HTTP handlers and the reminder tick
// run on different goroutines, and a websocket connection tolerates
// only one writer at a time.
func (h *Hub) Send(n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("websocket write failed", zap.String("client", id), zap.Error(err))
		}
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
