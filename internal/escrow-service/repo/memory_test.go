package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

func created(id string) *engine.Escrow {
	return &engine.Escrow{ID: id, Creator: "alice", EntryFee: 10, PriceSource: "ETH/USD", Status: engine.StatusCreated}
}

func TestMemoryAtomicRollsBackEverything(t *testing.T) {
	m := NewMemory()
	m.Deposit("alice", 100, "t")
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.Atomic(ctx, func(ctx context.Context, u engine.Unit) error {
		require.NoError(t, u.Records().Create(ctx, created("e1")))
		require.NoError(t, u.Ledger().Debit(ctx, "alice", 40, "escrow-in:e1"))
		require.NoError(t, u.Ledger().Credit(ctx, "escrow:e1", 40, "escrow-in:e1"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Equal(t, int64(100), m.BalanceOf("alice"))
	require.Zero(t, m.BalanceOf("escrow:e1"))
	require.Len(t, m.Entries("alice"), 1)

	err = m.Atomic(ctx, func(ctx context.Context, u engine.Unit) error {
		_, err := u.Records().Get(ctx, "e1")
		return err
	})
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestMemoryRecordsLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Atomic(ctx, func(ctx context.Context, u engine.Unit) error {
		r := u.Records()
		require.NoError(t, r.Create(ctx, created("e1")))
		require.ErrorIs(t, r.Create(ctx, created("e1")), engine.ErrDuplicateID)

		esc, err := r.Get(ctx, "e1")
		require.NoError(t, err)
		esc.Creator = "mutated"
		again, err := r.Get(ctx, "e1")
		require.NoError(t, err)
		require.Equal(t, "alice", again.Creator)

		require.Error(t, r.Retire(ctx, "e1"), "non-terminal records cannot retire")

		again.Status = engine.StatusWithdrawn
		require.NoError(t, r.Save(ctx, again))
		require.NoError(t, r.Retire(ctx, "e1"))

		_, err = r.Get(ctx, "e1")
		require.ErrorIs(t, err, engine.ErrNotFound)
		require.ErrorIs(t, r.Create(ctx, created("e1")), engine.ErrDuplicateID)
		require.ErrorIs(t, r.Save(ctx, again), engine.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemorySaveValidates(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	err := m.Atomic(ctx, func(ctx context.Context, u engine.Unit) error {
		require.NoError(t, u.Records().Create(ctx, created("e1")))
		bad := created("e1")
		bad.Status = engine.StatusOpen // sem custódia e sem referência
		return u.Records().Save(ctx, bad)
	})
	require.Error(t, err)
}

func TestMemoryLedger(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Deposit("bob", 30, "t")

	err := m.Atomic(ctx, func(ctx context.Context, u engine.Unit) error {
		l := u.Ledger()
		require.ErrorIs(t, l.Debit(ctx, "bob", 31, "x"), engine.ErrInsufficientBalance)
		require.Error(t, l.Debit(ctx, "bob", 0, "x"))
		require.Error(t, l.Credit(ctx, "bob", -1, "x"))
		require.NoError(t, l.Debit(ctx, "bob", 30, "escrow-in:e9"))
		bal, err := l.Balance(ctx, "bob")
		require.NoError(t, err)
		require.Zero(t, bal)
		return nil
	})
	require.NoError(t, err)

	entries := m.Entries("bob")
	require.Len(t, entries, 2)
	require.Equal(t, OpEscrowIn, entries[0].Operation)
	require.Equal(t, OpDeposit, entries[1].Operation)
	require.Equal(t, "deposit:t", entries[1].Ref)
	require.Equal(t, int64(0), m.TotalBalance())
}

func TestMemoryAtomicCancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := m.Atomic(ctx, func(context.Context, engine.Unit) error { called = true; return nil })
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestOperationFor(t *testing.T) {
	require.Equal(t, OpEscrowIn, operationFor("escrow-in:x", true))
	require.Equal(t, OpEscrowOut, operationFor("escrow-out:x", false))
	require.Equal(t, OpDeposit, operationFor("deposit:abc", true))
	require.Equal(t, OpCredit, operationFor("manual", true))
	require.Equal(t, OpDebit, operationFor("manual", false))
	require.Equal(t, "x", escrowIDFromRef("escrow-out:x").String)
	require.False(t, escrowIDFromRef("deposit:x").Valid)
}

func TestMemoryReadSkipsRetired(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Atomic(ctx, func(ctx context.Context, u engine.Unit) error {
		return u.Records().Create(ctx, created("e1"))
	}))

	got, err := m.Read(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, engine.StatusCreated, got.Status)

	got.Creator = "mallory"
	again, err := m.Read(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, "alice", again.Creator)

	_, err = m.Read(ctx, "missing")
	require.ErrorIs(t, err, engine.ErrNotFound)

	require.NoError(t, m.Atomic(ctx, func(ctx context.Context, u engine.Unit) error {
		again.Status = engine.StatusWithdrawn
		if err := u.Records().Save(ctx, again); err != nil {
			return err
		}
		return u.Records().Retire(ctx, "e1")
	}))
	_, err = m.Read(ctx, "e1")
	require.ErrorIs(t, err, engine.ErrNotFound)
}
