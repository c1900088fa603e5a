package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

type fakeSetter struct {
	key string
	val []byte
	ttl time.Duration
}

func (f *fakeSetter) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.key, f.val, f.ttl = key, value.([]byte), ttl
	return redis.NewStatusResult("OK", nil)
}

func TestSetCurrentUsesFeedKey(t *testing.T) {
	s := &fakeSetter{}
	c := NewRedisCache(s, time.Minute)
	u := events.PriceUpdate{Source: "SOL/USD", Mantissa: 15012, Exponent: -2, PublishTime: time.Unix(1, 0).UTC()}

	require.NoError(t, c.SetCurrent(context.Background(), u))
	require.Equal(t, "price:current:SOL/USD", s.key)
	require.Equal(t, time.Minute, s.ttl)

	var got events.PriceUpdate
	require.NoError(t, json.Unmarshal(s.val, &got))
	require.Equal(t, u, got)
}
