package engine

import (
	"context"
	"fmt"
)

// Custody move o valor fixo entre o saldo de uma parte e a conta de custódia do escrow.
// As duas pernas de cada movimento rodam no mesmo Ledger da unidade atômica corrente,
// então uma falha em qualquer perna aborta a transição inteira.
type Custody struct {
	ledger Ledger
}

// NewCustody cria o adaptador de custódia sobre o ledger da unidade corrente
func NewCustody(l Ledger) *Custody { return &Custody{ledger: l} }

// TransferIn debita amount da parte e credita a conta de custódia do escrow
func (c *Custody) TransferIn(ctx context.Context, esc *Escrow, party string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("custody: transfer amount must be positive")
	}
	ref := "escrow-in:" + esc.ID
	if err := c.ledger.Debit(ctx, party, amount, ref); err != nil {
		return err
	}
	if err := c.ledger.Credit(ctx, esc.VaultAccount(), amount, ref); err != nil {
		return err
	}
	esc.CustodyBalance += amount
	return nil
}

// TransferOut debita a custódia do escrow e credita a parte.
// amount zero é permitido (reembolso de escrow ainda não financiado) e não move nada.
func (c *Custody) TransferOut(ctx context.Context, esc *Escrow, party string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("custody: negative transfer amount")
	}
	if amount > esc.CustodyBalance {
		return fmt.Errorf("custody: transfer %d exceeds custody %d", amount, esc.CustodyBalance)
	}
	if amount == 0 {
		return nil
	}
	ref := "escrow-out:" + esc.ID
	if err := c.ledger.Debit(ctx, esc.VaultAccount(), amount, ref); err != nil {
		return err
	}
	if err := c.ledger.Credit(ctx, party, amount, ref); err != nil {
		return err
	}
	esc.CustodyBalance -= amount
	return nil
}
