package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "event:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
	At   int64           `json:"at"`
}

// RedisPubSub implements RedisPublisher and RedisSubscriber using Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for event rooms.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Channel returns the Redis channel for an event.
func Channel(eventID uuid.UUID) string {
	return channelPrefix + eventID.String()
}

// PublishEventMessage publishes a message to the event's Redis channel.
func (r *RedisPubSub) PublishEventMessage(ctx context.Context, eventID uuid.UUID, kind string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Kind: kind, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, Channel(eventID), body).Err()
}

// SubscribeEvent subscribes to an event's Redis channel and calls handler for each message.
// Returns a cancel function to stop the subscription.
func (r *RedisPubSub) SubscribeEvent(eventID uuid.UUID, handler func(kind string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, Channel(eventID))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Debug("drop malformed event message", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(p.Kind, p.Data)
			}
		}
	}()
	return cancelCtx, nil
}
