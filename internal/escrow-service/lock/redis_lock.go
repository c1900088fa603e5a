package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

// unlockLua só apaga a chave se o token ainda for nosso
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Client é o subconjunto do go-redis usado pelo lock
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker implementa engine.Locker entre réplicas do escrow-service via SETNX com TTL.
// Com Wait > 0 tenta de novo até esse prazo; depois disso devolve engine.ErrBusy.
type RedisLocker struct {
	rdb   Client
	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration
}

func NewRedisLocker(c Client, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{rdb: c, TTL: ttl, Wait: wait, Retry: 25 * time.Millisecond}
}

func Key(id string) string { return "lock:escrow:" + id }

func (l *RedisLocker) Acquire(ctx context.Context, id string) (func(), error) {
	token := uuid.New().String()
	key := Key(id)
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", id, err)
		}
		if ok {
			break
		}
		if l.Wait <= 0 || time.Now().After(deadline) {
			return nil, engine.ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// contexto próprio: o do chamador pode já estar cancelado
			uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.rdb.Eval(uctx, unlockLua, []string{key}, token).Err()
		})
	}, nil
}

var _ engine.Locker = (*RedisLocker)(nil)

// Chain adquire os locks em ordem e solta na ordem inversa.
// Usado para combinar o lock em processo com o distribuído.
type Chain []engine.Locker

func (c Chain) Acquire(ctx context.Context, id string) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, l := range c {
		u, err := l.Acquire(ctx, id)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

var _ engine.Locker = Chain(nil)
