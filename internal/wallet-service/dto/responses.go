package dto

import "time"

type WalletResponse struct {
	UserID       string `json:"userId"`
	WalletID     string `json:"walletId"`
	BalanceCents int64  `json:"balance_cents"`
}

type LedgerEntry struct {
	ID          int64     `json:"id"`
	Operation   string    `json:"operation"` // DEPOSIT | ESCROW_IN | ESCROW_OUT
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description,omitempty"`
	EscrowID    string    `json:"escrow_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type LedgerResponse struct {
	UserID  string        `json:"userId"`
	Entries []LedgerEntry `json:"entries"`
}
