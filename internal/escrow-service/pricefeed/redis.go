package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// Key monta a chave Redis com o preço corrente de uma fonte (gravada pelo price-processor)
func Key(source string) string { return events.PriceCacheKey(source) }

// Getter é o subconjunto do cliente Redis usado pelo feed
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisFeed lê o último preço publicado pelo pipeline de preços.
// Com MaxAge > 0, cotações mais velhas que isso são recusadas.
type RedisFeed struct {
	Client Getter
	MaxAge time.Duration

	nowFn func() time.Time
}

func NewRedisFeed(c Getter, maxAge time.Duration) *RedisFeed {
	return &RedisFeed{Client: c, MaxAge: maxAge, nowFn: time.Now}
}

func (f *RedisFeed) ReadPrice(ctx context.Context, source string) (engine.PriceQuote, error) {
	raw, err := f.Client.Get(ctx, Key(source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.PriceQuote{}, fmt.Errorf("%w: no price for %s", engine.ErrFeedUnavailable, source)
	}
	if err != nil {
		return engine.PriceQuote{}, fmt.Errorf("%w: %v", engine.ErrFeedUnavailable, err)
	}

	var u events.PriceUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		return engine.PriceQuote{}, fmt.Errorf("%w: decode %s: %v", engine.ErrInvalidPrice, source, err)
	}
	if u.Mantissa <= 0 {
		return engine.PriceQuote{}, engine.ErrInvalidPrice
	}
	if f.MaxAge > 0 {
		now := time.Now
		if f.nowFn != nil {
			now = f.nowFn
		}
		if age := now().Sub(u.PublishTime); age > f.MaxAge {
			return engine.PriceQuote{}, fmt.Errorf("%w: price for %s is stale (%s old)", engine.ErrFeedUnavailable, source, age.Truncate(time.Second))
		}
	}
	return engine.PriceQuote{
		Source:     source,
		Mantissa:   u.Mantissa,
		Exponent:   u.Exponent,
		Conf:       u.Conf,
		ObservedAt: u.PublishTime,
	}, nil
}

var _ engine.PriceFeed = (*RedisFeed)(nil)
