package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"carelink/backend/internal/config"
	"carelink/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Relay fans realtime envelopes out to every server instance over Redis pub/sub.
type Relay struct {
	Redis   *redis.Client
	Origin  string
	Channel string
}

// NewRelay Constructor. origin identifies this process so it can drop its own echoes.
func NewRelay(rdb *redis.Client, origin string) *Relay {
	return &Relay{
		Redis:   rdb,
		Origin:  origin,
		Channel: config.BroadcastChannel,
	}
}

// Publish публікує подію для кімнати в Redis Pub/Sub
func (r *Relay) Publish(ctx context.Context, room string, env models.Envelope) error {
	payload, err := json.Marshal(models.RelayMessage{
		Origin:   r.Origin,
		Room:     room,
		Envelope: env,
	})
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	return r.Redis.Publish(ctx, r.Channel, payload).Err()
}

// Subscribe returns a subscription to the shared channel. The caller closes it.
func (r *Relay) Subscribe(ctx context.Context) *redis.PubSub {
	return r.Redis.Subscribe(ctx, r.Channel)
}
