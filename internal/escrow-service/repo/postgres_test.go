package repo

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

func TestEscrowIDFromRef(t *testing.T) {
	tests := []struct {
		ref  string
		want sql.NullString
	}{
		{ref: "escrow-in:0xabc", want: sql.NullString{String: "0xabc", Valid: true}},
		{ref: "escrow-out:0xabc", want: sql.NullString{String: "0xabc", Valid: true}},
		{ref: "escrow-in:", want: sql.NullString{}},
		{ref: "deposit:seed", want: sql.NullString{}},
		{ref: "", want: sql.NullString{}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, escrowIDFromRef(tt.ref), tt.ref)
	}
}

func TestMapInsertError(t *testing.T) {
	require.NoError(t, mapInsertError(nil))

	dup := &pq.Error{Code: uniqueViolation, Constraint: "escrows_pkey"}
	require.ErrorIs(t, mapInsertError(dup), engine.ErrDuplicateID)
	require.ErrorIs(t, mapInsertError(errors.Join(errors.New("insert"), dup)), engine.ErrDuplicateID)

	fk := &pq.Error{Code: "23503"}
	require.Same(t, fk, mapInsertError(fk))

	other := errors.New("connection reset")
	require.Equal(t, other, mapInsertError(other))
}

func TestEscrowQueryLocksOnlyInsideTransitions(t *testing.T) {
	require.Contains(t, escrowQuery(true), "FOR UPDATE")
	require.NotContains(t, escrowQuery(false), "FOR UPDATE")
	require.Contains(t, escrowQuery(false), "retired_at IS NULL")
}
