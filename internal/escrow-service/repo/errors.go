package repo

import (
	"fmt"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

func errNotTerminal(id string, s engine.Status) error {
	return fmt.Errorf("escrow %s: cannot retire in status %s", id, s)
}

func errNonPositive(amount int64) error {
	return fmt.Errorf("ledger: amount must be positive, got %d", amount)
}
