package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// Setter é o subconjunto do cliente Redis usado pelo cache
type Setter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache guarda o preço corrente de cada fonte no Redis
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client Setter
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c Setter, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// SetCurrent grava o preço atual da fonte; é a chave lida pelo feed do escrow-service
func (r *RedisCache) SetCurrent(ctx context.Context, u events.PriceUpdate) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, events.PriceCacheKey(u.Source), b, r.TTL).Err()
}
