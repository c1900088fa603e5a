package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHubDeliversOnlySubscribedSources(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(hub)
	defer srv.Close()

	eth := dial(t, srv)
	btc := dial(t, srv)

	require.NoError(t, eth.WriteJSON(ClientMsg{Type: "subscribe", Source: "ETH/USD"}))
	require.Equal(t, "subscribed", readType(t, eth)["type"])
	require.NoError(t, btc.WriteJSON(ClientMsg{Type: "subscribe", Source: "BTC/USD"}))
	require.Equal(t, "subscribed", readType(t, btc)["type"])

	hub.Broadcast(events.PriceBroadcast{Source: "ETH/USD", Payload: events.PriceUpdate{Source: "ETH/USD", Mantissa: 250000, Exponent: -2}})
	hub.Broadcast(events.PriceBroadcast{Source: "BTC/USD", Payload: events.PriceUpdate{Source: "BTC/USD", Mantissa: 6000000, Exponent: -2}})

	require.NoError(t, eth.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got events.PriceBroadcast
	require.NoError(t, eth.ReadJSON(&got))
	require.Equal(t, "ETH/USD", got.Source)
	require.Equal(t, int64(250000), got.Payload.Mantissa)

	require.NoError(t, btc.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, btc.ReadJSON(&got))
	require.Equal(t, "BTC/USD", got.Source)
}

func TestHubPingAndUnsubscribe(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	require.Equal(t, "pong", readType(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Source: "SOL/USD"}))
	readType(t, conn)
	require.Equal(t, 1, hub.Subscribers("SOL/USD"))

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "unsubscribe", Source: "SOL/USD"}))
	require.Equal(t, "unsubscribed", readType(t, conn)["type"])
	require.Equal(t, 0, hub.Subscribers("SOL/USD"))
}

func TestHubDropsClosedConnections(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Source: "ETH/USD"}))
	readType(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return hub.Subscribers("ETH/USD") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestForwardRelaysPubSubMessages(t *testing.T) {
	hub := NewHub(func(*http.Request) bool { return true })
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Source: "ETH/USD"}))
	readType(t, conn)

	ch := make(chan *redis.Message, 2)
	b, _ := json.Marshal(events.PriceBroadcast{Source: "ETH/USD", Payload: events.PriceUpdate{Source: "ETH/USD", Mantissa: 1}})
	ch <- &redis.Message{Payload: "garbage"}
	ch <- &redis.Message{Payload: string(b)}
	close(ch)

	stopped := make(chan struct{})
	Forward(context.Background(), ch, hub, zap.NewNop(), func() { close(stopped) })
	<-stopped

	m := readType(t, conn)
	require.Equal(t, "ETH/USD", m["source"])
}
