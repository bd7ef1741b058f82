// Package ws carries the real-time proximity events over websockets.
// Each frame is a JSON envelope {"event": name, "data": payload}.
package ws

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/gdugdh24/yuno-backend/internal/logging"
	"github.com/gdugdh24/yuno-backend/internal/metrics"
	"github.com/gdugdh24/yuno-backend/internal/realtime"
)

type Config struct {
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
	AllowedOrigins  []string
}

func DefaultConfig() Config {
	return Config{
		SendBuffer:      256,
		EventsPerSecond: 10,
		EventBurst:      20,
	}
}

// Hub owns the live websocket clients and delivers realtime pushes to
// them. It is the broadcaster's Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	registry    *realtime.Registry
	broadcaster *realtime.Broadcaster
	cfg         Config
}

var _ realtime.Notifier = (*Hub)(nil)

func NewHub(registry *realtime.Registry, rtCfg realtime.Config, cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.EventsPerSecond <= 0 {
		cfg.EventsPerSecond = def.EventsPerSecond
	}
	if cfg.EventBurst <= 0 {
		cfg.EventBurst = def.EventBurst
	}

	h := &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		cfg:      cfg,
	}
	h.broadcaster = realtime.NewBroadcaster(registry, h, rtCfg)
	return h
}

// Broadcaster returns the broadcaster bound to this hub.
func (h *Hub) Broadcaster() *realtime.Broadcaster {
	return h.broadcaster
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify encodes the event and queues it on the client's send buffer
// without blocking.
func (h *Hub) Notify(connectionID, event string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return realtime.ErrUnknownConnection
	}

	frame, err := encode(event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

func encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(realtime.Envelope{Event: event, Data: data})
}

// register adds a client under a fresh registry record and greets it.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Info().Str("connection_id", c.id).Int("total_clients", total).Msg("websocket client connected")

	if err := h.Notify(c.id, realtime.EventConnected, realtime.Connected{ConnectionID: c.id}); err != nil {
		logging.Warn().Err(err).Str("connection_id", c.id).Msg("failed to greet client")
	}
}

// unregister detaches the client and runs disconnect handling. Safe to
// call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.closeSend()
	h.broadcaster.Disconnect(c.id)

	metrics.WSConnections.Dec()
	logging.Info().Str("connection_id", c.id).Int("total_clients", total).Msg("websocket client disconnected")
}

// CloseAll disconnects every client; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}
}
