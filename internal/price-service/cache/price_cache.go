package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Cache lê o preço corrente gravado pelo price-processor
type Cache struct{ R Getter }

func New(r Getter) *Cache { return &Cache{R: r} }

func (c *Cache) GetCurrent(ctx context.Context, source string) (events.PriceUpdate, bool, error) {
	var u events.PriceUpdate
	b, err := c.R.Get(ctx, events.PriceCacheKey(source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return u, false, nil
	}
	if err != nil {
		return u, false, err
	}
	if err := json.Unmarshal(b, &u); err != nil {
		return u, false, err
	}
	return u, true, nil
}
