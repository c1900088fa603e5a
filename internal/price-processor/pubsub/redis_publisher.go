package pubsub

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Client é o subconjunto do cliente Redis usado para publicar
type Client interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type RedisBroadcaster struct {
	r Client
}

func NewRedisBroadcaster(r Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}
