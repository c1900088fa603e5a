package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

type fakePublisher struct {
	mu  sync.Mutex
	got []events.PriceUpdate
	err error
}

func (f *fakePublisher) Publish(_ context.Context, u events.PriceUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, u)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestHandleValidatesBeforePublishing(t *testing.T) {
	pub := &fakePublisher{}
	rejected := map[string]int{}
	c := &WSClient{Log: zap.NewNop(), Publisher: pub, OnRejected: func(r string) { rejected[r]++ }}

	ctx := context.Background()
	c.handle(ctx, []byte(`not json`))
	c.handle(ctx, []byte(`{"source":"","mantissa":10,"publish_time":"2025-01-01T00:00:00Z"}`))
	c.handle(ctx, []byte(`{"source":"ETH/USD","mantissa":0,"publish_time":"2025-01-01T00:00:00Z"}`))
	c.handle(ctx, []byte(`{"source":"ETH/USD","mantissa":262668321338,"exponent":-8,"publish_time":"2025-01-01T00:00:00Z"}`))

	require.Equal(t, 1, pub.count())
	require.Equal(t, map[string]int{"decode": 1, "source": 1, "price": 1}, rejected)
	require.Equal(t, int32(-8), pub.got[0].Exponent)
}

func TestHandleCountsPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("kafka")}
	var rejected []string
	c := &WSClient{Log: zap.NewNop(), Publisher: pub, OnRejected: func(r string) { rejected = append(rejected, r) }}

	c.handle(context.Background(), []byte(`{"source":"SOL/USD","mantissa":15000,"exponent":-2,"publish_time":"2025-01-01T00:00:00Z"}`))
	require.Equal(t, []string{"publish"}, rejected)
}

func TestStartReadsFromOracleUntilCancelled(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range []string{
			`{"source":"ETH/USD","mantissa":100000,"exponent":-2,"publish_time":"2025-01-01T00:00:00Z","version":1}`,
			`{"source":"BTC/USD","mantissa":6000000,"exponent":-2,"publish_time":"2025-01-01T00:00:00Z","version":1}`,
		} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		// mantém a conexão até o cliente fechar
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	c := &WSClient{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Log:            zap.NewNop(),
		Publisher:      pub,
		ReconnectDelay: 10 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pub.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after cancel")
	}
}
