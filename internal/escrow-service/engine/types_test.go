package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusCreated, StatusOpen, StatusAccepted, StatusClosed, StatusWithdrawn} {
		require.True(t, s.Valid())
		got, err := ParseStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
	require.False(t, Status(0).Valid())
	require.False(t, Status(9).Valid())
	require.Equal(t, "UNKNOWN(9)", Status(9).String())

	_, err := ParseStatus("PENDING")
	require.Error(t, err)
}

func TestTerminal(t *testing.T) {
	require.True(t, StatusClosed.Terminal())
	require.True(t, StatusWithdrawn.Terminal())
	require.False(t, StatusCreated.Terminal())
	require.False(t, StatusOpen.Terminal())
	require.False(t, StatusAccepted.Terminal())
}

func TestDeriveID(t *testing.T) {
	a := DeriveID("alice", 1)
	require.Len(t, a, 66)
	require.Equal(t, "0x", a[:2])
	require.Equal(t, a, DeriveID("alice", 1))
	require.NotEqual(t, a, DeriveID("alice", 2))
	require.NotEqual(t, a, DeriveID("bob", 1))
}

func TestCloneIsDeep(t *testing.T) {
	ref := quote(100, 0)
	esc := &Escrow{ID: "x", ReferencePrice: &ref}
	c := esc.Clone()
	c.ReferencePrice.Mantissa = 999
	require.Equal(t, int64(100), esc.ReferencePrice.Mantissa)
	require.Nil(t, (*Escrow)(nil).Clone())
}

func TestValidate(t *testing.T) {
	ref := quote(100, 0)
	base := func(s Status) *Escrow {
		return &Escrow{ID: "x", Creator: "alice", EntryFee: 10, Status: s}
	}
	tests := []struct {
		name  string
		esc   func() *Escrow
		valid bool
	}{
		{"created", func() *Escrow { return base(StatusCreated) }, true},
		{"created with custody", func() *Escrow { e := base(StatusCreated); e.CustodyBalance = 10; return e }, false},
		{"created with reference", func() *Escrow { e := base(StatusCreated); e.ReferencePrice = &ref; return e }, false},
		{"open", func() *Escrow { e := base(StatusOpen); e.CustodyBalance = 10; e.ReferencePrice = &ref; return e }, true},
		{"open without reference", func() *Escrow { e := base(StatusOpen); e.CustodyBalance = 10; return e }, false},
		{"open with counterparty", func() *Escrow {
			e := base(StatusOpen)
			e.CustodyBalance, e.ReferencePrice, e.Counterparty = 10, &ref, "bob"
			return e
		}, false},
		{"accepted", func() *Escrow {
			e := base(StatusAccepted)
			e.CustodyBalance, e.ReferencePrice, e.Counterparty = 20, &ref, "bob"
			return e
		}, true},
		{"accepted half funded", func() *Escrow {
			e := base(StatusAccepted)
			e.CustodyBalance, e.ReferencePrice, e.Counterparty = 10, &ref, "bob"
			return e
		}, false},
		{"closed", func() *Escrow {
			e := base(StatusClosed)
			e.ReferencePrice, e.Counterparty = &ref, "bob"
			return e
		}, true},
		{"withdrawn from created", func() *Escrow { return base(StatusWithdrawn) }, true},
		{"zero fee", func() *Escrow { e := base(StatusCreated); e.EntryFee = 0; return e }, false},
		{"bad status", func() *Escrow { return base(Status(42)) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.esc().Validate()
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("%w: redis timeout", ErrFeedUnavailable)
	require.ErrorIs(t, wrapped, ErrFeedUnavailable)
	require.Equal(t, KindDependency, KindOf(wrapped))
	require.Equal(t, "FeedUnavailable", CodeOf(wrapped))

	// mesma mensagem, códigos diferentes
	require.Equal(t, ErrGameNotFundable.Error(), ErrGameNotJoinable.Error())
	require.False(t, errors.Is(ErrGameNotFundable, ErrGameNotJoinable))

	plain := errors.New("disk full")
	require.Equal(t, Kind(0), KindOf(plain))
	require.Equal(t, "Internal", CodeOf(plain))
	require.Equal(t, "PolicyViolation", KindPolicy.String())
}
