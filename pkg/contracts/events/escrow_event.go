package events

import "time"

const (
	EscrowOpened    = "escrow.opened"
	EscrowFunded    = "escrow.funded"
	EscrowAccepted  = "escrow.accepted"
	EscrowSettled   = "escrow.settled"
	EscrowWithdrawn = "escrow.withdrawn"
)

// EscrowEvent é emitido pelo escrow-service após cada transição confirmada.
type EscrowEvent struct {
	Type           string    `json:"type"`
	EscrowID       string    `json:"escrow_id"`
	Creator        string    `json:"creator"`
	Counterparty   string    `json:"counterparty,omitempty"`
	EntryFee       int64     `json:"entry_fee"`
	Direction      bool      `json:"direction"` // true = criador comprado (leg-up)
	Status         string    `json:"status"`
	CustodyBalance int64     `json:"custody_balance"`
	PriceSource    string    `json:"price_source"`
	RefMantissa    int64     `json:"ref_mantissa,omitempty"`
	RefExponent    int32     `json:"ref_exponent,omitempty"`
	MovePercent    string    `json:"move_percent,omitempty"` // variação observada na transição
	Winner         string    `json:"winner,omitempty"`
	Payout         int64     `json:"payout,omitempty"`
	TsUnixMs       int64     `json:"ts_unix_ms"`
	Ts             time.Time `json:"ts"`
}
