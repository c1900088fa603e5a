package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

type fakeRedis struct {
	mu    sync.Mutex
	keys  map[string]string
	err   error
	evals int
}

func newFakeRedis() *fakeRedis { return &fakeRedis{keys: map[string]string{}} }

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key]
	return ok
}

func TestRedisLockerFailsFastWhenHeld(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, time.Second, 0)

	unlock, err := l.Acquire(context.Background(), "e1")
	require.NoError(t, err)
	require.True(t, rdb.held(Key("e1")))

	_, err = l.Acquire(context.Background(), "e1")
	require.ErrorIs(t, err, engine.ErrBusy)

	other, err := l.Acquire(context.Background(), "e2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	require.False(t, rdb.held(Key("e1")))
	require.Equal(t, 2, rdb.evals)
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	rdb := newFakeRedis()
	l := NewRedisLocker(rdb, time.Second, time.Second)
	l.Retry = time.Millisecond

	unlock, err := l.Acquire(context.Background(), "e1")
	require.NoError(t, err)
	go func() {
		time.Sleep(10 * time.Millisecond)
		unlock()
	}()

	second, err := l.Acquire(context.Background(), "e1")
	require.NoError(t, err)
	second()
}

func TestRedisLockerTransportError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("dial tcp: refused")
	_, err := NewRedisLocker(rdb, time.Second, 0).Acquire(context.Background(), "e1")
	require.Error(t, err)
	require.NotErrorIs(t, err, engine.ErrBusy)
}

func TestChainReleasesOnPartialFailure(t *testing.T) {
	rdb := newFakeRedis()
	local := engine.NewKeyedMutex()
	dist := NewRedisLocker(rdb, time.Second, 0)
	chain := Chain{local, dist}

	// ocupa só o lock distribuído, como se outra réplica o tivesse
	holder, err := dist.Acquire(context.Background(), "e1")
	require.NoError(t, err)

	_, err = chain.Acquire(context.Background(), "e1")
	require.ErrorIs(t, err, engine.ErrBusy)

	// o lock local foi devolvido
	u, err := local.Acquire(context.Background(), "e1")
	require.NoError(t, err)
	u()

	holder()
	unlock, err := chain.Acquire(context.Background(), "e1")
	require.NoError(t, err)
	unlock()
	require.False(t, rdb.held(Key("e1")))
}
