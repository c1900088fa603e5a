package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

type fakeGetter struct {
	values map[string]string
	err    error
	keys   []string
}

func (g *fakeGetter) Get(_ context.Context, key string) *redis.StringCmd {
	g.keys = append(g.keys, key)
	if g.err != nil {
		return redis.NewStringResult("", g.err)
	}
	v, ok := g.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func encode(t *testing.T, u events.PriceUpdate) string {
	t.Helper()
	b, err := json.Marshal(u)
	require.NoError(t, err)
	return string(b)
}

func TestRedisFeedReadsCurrentPrice(t *testing.T) {
	published := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	g := &fakeGetter{values: map[string]string{
		"price:current:ETH/USD": encode(t, events.PriceUpdate{
			Source: "ETH/USD", Mantissa: 262668321338, Exponent: -8, Conf: 150000000, PublishTime: published,
		}),
	}}
	feed := NewRedisFeed(g, 0)

	q, err := feed.ReadPrice(context.Background(), "ETH/USD")
	require.NoError(t, err)
	require.Equal(t, []string{"price:current:ETH/USD"}, g.keys)
	require.Equal(t, int64(262668321338), q.Mantissa)
	require.Equal(t, int32(-8), q.Exponent)
	require.Equal(t, uint64(150000000), q.Conf)
	require.Equal(t, "2626.68321338", q.String())
	require.True(t, published.Equal(q.ObservedAt))
}

func TestRedisFeedMissingKeyIsUnavailable(t *testing.T) {
	feed := NewRedisFeed(&fakeGetter{}, 0)
	_, err := feed.ReadPrice(context.Background(), "BTC/USD")
	require.ErrorIs(t, err, engine.ErrFeedUnavailable)
}

func TestRedisFeedTransportErrorIsUnavailable(t *testing.T) {
	feed := NewRedisFeed(&fakeGetter{err: errors.New("connection refused")}, 0)
	_, err := feed.ReadPrice(context.Background(), "ETH/USD")
	require.ErrorIs(t, err, engine.ErrFeedUnavailable)
	require.Equal(t, engine.KindDependency, engine.KindOf(err))
}

func TestRedisFeedRejectsGarbageAndNonPositive(t *testing.T) {
	g := &fakeGetter{values: map[string]string{
		"price:current:BAD":  "{not json",
		"price:current:ZERO": encode(t, events.PriceUpdate{Source: "ZERO", Mantissa: 0, Exponent: -2}),
	}}
	feed := NewRedisFeed(g, 0)

	_, err := feed.ReadPrice(context.Background(), "BAD")
	require.ErrorIs(t, err, engine.ErrInvalidPrice)

	_, err = feed.ReadPrice(context.Background(), "ZERO")
	require.ErrorIs(t, err, engine.ErrInvalidPrice)
}

func TestRedisFeedMaxAge(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	g := &fakeGetter{values: map[string]string{
		"price:current:ETH/USD": encode(t, events.PriceUpdate{Source: "ETH/USD", Mantissa: 100000, Exponent: -2, PublishTime: now.Add(-31 * time.Second)}),
		"price:current:BTC/USD": encode(t, events.PriceUpdate{Source: "BTC/USD", Mantissa: 100000, Exponent: -2, PublishTime: now.Add(-30 * time.Second)}),
	}}
	feed := NewRedisFeed(g, 30*time.Second)
	feed.nowFn = func() time.Time { return now }

	_, err := feed.ReadPrice(context.Background(), "ETH/USD")
	require.ErrorIs(t, err, engine.ErrFeedUnavailable)

	q, err := feed.ReadPrice(context.Background(), "BTC/USD")
	require.NoError(t, err)
	require.Equal(t, "1000", q.String())
}

func TestManualFeed(t *testing.T) {
	feed := NewManualFeed()

	_, err := feed.ReadPrice(context.Background(), "ETH/USD")
	require.ErrorIs(t, err, engine.ErrFeedUnavailable)

	feed.Set("ETH/USD", 105000, -2)
	q, err := feed.ReadPrice(context.Background(), "ETH/USD")
	require.NoError(t, err)
	require.Equal(t, "1050", q.String())
	require.False(t, q.ObservedAt.IsZero())

	boom := errors.New("oracle down")
	feed.Fail(boom)
	_, err = feed.ReadPrice(context.Background(), "ETH/USD")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, feed.Reads())
}
