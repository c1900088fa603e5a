package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func quote(m int64, e int32) PriceQuote { return PriceQuote{Source: "ETH/USD", Mantissa: m, Exponent: e} }

func TestPercentMove(t *testing.T) {
	tests := []struct {
		name string
		ref  PriceQuote
		cur  PriceQuote
		want string
	}{
		{name: "flat", ref: quote(100000, -2), cur: quote(100000, -2), want: "0"},
		{name: "up one percent", ref: quote(100000, -2), cur: quote(101000, -2), want: "1"},
		{name: "down five percent", ref: quote(100000, -2), cur: quote(95000, -2), want: "-5"},
		{name: "mixed exponents", ref: quote(1000, 0), cur: quote(10100000, -4), want: "1"},
		{name: "pyth scale", ref: quote(262668321338, -8), cur: quote(265000000000, -8), want: "0.88768933"},
		{name: "rounds to 8 places", ref: quote(3, 0), cur: quote(4, 0), want: "33.33333333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PercentMove(tt.ref, tt.cur)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestPercentMoveRejectsNonPositiveReference(t *testing.T) {
	_, err := PercentMove(quote(0, -2), quote(100, -2))
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = PercentMove(quote(-5, 0), quote(100, -2))
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestToleranceAndThresholdAreInclusive(t *testing.T) {
	ref := quote(262668321338, -8)

	// 1% de 262668321338 não cai em mantissa inteira; fronteira exata com referência redonda
	round := quote(200000000000, -8)
	ok, err := WithinTolerance(round, quote(202000000000, -8), 100)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = WithinTolerance(round, quote(202000000001, -8), 100)
	require.NoError(t, err)
	require.False(t, ok)

	hit, err := ReachesThreshold(round, quote(190000000000, -8), 500)
	require.NoError(t, err)
	require.True(t, hit)
	hit, err = ReachesThreshold(round, quote(190000000001, -8), 500)
	require.NoError(t, err)
	require.False(t, hit)

	// logo abaixo e logo acima de 1% com a referência real
	ok, err = WithinTolerance(ref, quote(265295004551, -8), 100)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = WithinTolerance(ref, quote(265295004552, -8), 100)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompareRejectsNonPositiveCurrent(t *testing.T) {
	_, err := WithinTolerance(quote(100, 0), quote(0, 0), 100)
	require.ErrorIs(t, err, ErrInvalidPrice)
	_, err = ReachesThreshold(quote(100, 0), quote(-1, 0), 500)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestPolicy(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())
	require.Error(t, Policy{AcceptToleranceBps: -1, CloseThresholdBps: 500, DefaultPriceSource: "X"}.Validate())
	require.Error(t, Policy{AcceptToleranceBps: 100, CloseThresholdBps: 0, DefaultPriceSource: "X"}.Validate())
	require.Error(t, Policy{AcceptToleranceBps: 100, CloseThresholdBps: 500}.Validate())

	sp, err := SettlePolicyByName("participants")
	require.NoError(t, err)
	esc := &Escrow{Creator: "alice", Counterparty: "bob"}
	require.NoError(t, sp(esc, "bob"))
	require.ErrorIs(t, sp(esc, "carol"), ErrNotParticipant)

	sp, err = SettlePolicyByName("")
	require.NoError(t, err)
	require.NoError(t, sp(esc, "carol"))

	_, err = SettlePolicyByName("owner")
	require.Error(t, err)
}
