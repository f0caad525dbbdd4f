package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/metrics"
	"github.com/spherelink/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// EventStatsMessage carries a models.EventStats payload.
	EventStatsMessage = "event_stats"
)

// Hub maintains event_id -> set of connections and broadcasts messages.
// With Redis configured, publishes go through the channel so every instance
// (this one included) delivers exactly once.
type Hub struct {
	// eventID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per event
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishEventMessage(ctx context.Context, eventID uuid.UUID, kind string, payload []byte) error
}

// RedisSubscriber subscribes to event channels and invokes handler for incoming messages.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(kind string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis sides may be nil.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to an event room. Starts the Redis subscription for the event on first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
		if h.redisSub != nil {
			eventID := c.EventID
			cancel, err := h.redisSub.SubscribeEvent(eventID, func(kind string, payload []byte) {
				h.Broadcast(eventID, kind, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("subscribe event channel", zap.String("event_id", eventID.String()), zap.Error(err))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	h.rooms[c.EventID][c.ID] = c
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()
	h.logger.Debug("client joined event", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.rooms[c.EventID]
	if ok {
		if _, ok = m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.EventID)
			if cancel, found := h.subs[c.EventID]; found {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	if ok {
		metrics.WebsocketClients.Dec()
	}
	h.logger.Debug("client left event", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to all clients watching an event (local only).
func (h *Hub) Broadcast(eventID uuid.UUID, kind string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode broadcast", zap.String("kind", kind), zap.Error(err))
		return
	}
	msg := WSMessage{Event: kind, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishStats announces new capacity figures for an event.
func (h *Hub) PublishStats(ctx context.Context, eventID uuid.UUID, stats models.EventStats) {
	if h.redis == nil {
		h.Broadcast(eventID, EventStatsMessage, stats)
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := h.redis.PublishEventMessage(ctx, eventID, EventStatsMessage, data); err != nil {
		h.logger.Warn("publish event stats", zap.String("event_id", eventID.String()), zap.Error(err))
		h.Broadcast(eventID, EventStatsMessage, stats)
	}
}

// SendTo sends a message to a single client.
func (h *Hub) SendTo(c *Client, kind string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: kind, Data: data}:
	default:
	}
}

// Watchers returns the number of connected clients for an event.
func (h *Hub) Watchers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
