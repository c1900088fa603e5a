package oracle

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

func TestTickStaysWithinStep(t *testing.T) {
	o := New(DefaultCatalog, 42, 0.005)
	before := map[string]int64{}
	for _, p := range o.Snapshot() {
		before[p.Source] = p.Mantissa
	}

	for i := 0; i < 50; i++ {
		for _, p := range o.Tick() {
			require.Positive(t, p.Mantissa)
			require.Equal(t, i+1, p.Version)
			require.Equal(t, Provider, p.Provider)
			require.NoError(t, p.Validate())
		}
	}

	// primeiro tick respeita o passo máximo
	other := New(DefaultCatalog, 42, 0.005)
	first := other.Tick()
	require.Len(t, first, 3)
	for _, p := range first {
		limit := float64(before[p.Source]) * 0.005
		require.InDelta(t, float64(before[p.Source]), float64(p.Mantissa), limit+1)
	}
	require.Equal(t, []string{"BTC/USD", "ETH/USD", "SOL/USD"}, []string{first[0].Source, first[1].Source, first[2].Source})
}

func TestSet(t *testing.T) {
	o := New(DefaultCatalog, 1, 0.005)

	exp := int32(-2)
	p, err := o.Set("ETH/USD", 265000, &exp, 0)
	require.NoError(t, err)
	require.Equal(t, int64(265000), p.Mantissa)
	require.Equal(t, int32(-2), p.Exponent)
	require.Equal(t, uint64(265), p.Conf)
	require.Equal(t, 1, p.Version)

	p, err = o.Set("ETH/USD", 270000, nil, 7)
	require.NoError(t, err)
	require.Equal(t, int32(-2), p.Exponent)
	require.Equal(t, uint64(7), p.Conf)

	_, err = o.Set("DOGE/USD", 1, nil, 0)
	require.ErrorIs(t, err, ErrUnknownSource)
	_, err = o.Set("ETH/USD", 0, nil, 0)
	require.ErrorIs(t, err, events.ErrNonPositivePrice)
}

func TestPostPriceBroadcastsToClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	s := NewServer(zap.NewNop(), New(DefaultCatalog, 1, 0.005), hub)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	res, err := http.Post(srv.URL+"/oracle/price", "application/json",
		strings.NewReader(`{"source":"ETH/USD","mantissa":265000000000}`))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got events.PriceUpdate
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "ETH/USD", got.Source)
	require.Equal(t, int64(265000000000), got.Mantissa)
	require.Equal(t, int32(-8), got.Exponent)

	res, err = http.Post(srv.URL+"/oracle/price", "application/json", strings.NewReader(`{"source":"XRP/USD","mantissa":1}`))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
