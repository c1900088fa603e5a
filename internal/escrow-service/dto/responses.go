package dto

import (
	"time"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

type PriceResponse struct {
	Source     string    `json:"source"`
	Mantissa   int64     `json:"mantissa"`
	Exponent   int32     `json:"exponent"`
	Conf       uint64    `json:"conf"`
	Price      string    `json:"price"` // mantissa * 10^exponent, exato
	ObservedAt time.Time `json:"observed_at"`
}

type EscrowResponse struct {
	ID             string         `json:"id"`
	Seed           uint64         `json:"seed"`
	Creator        string         `json:"creator"`
	Counterparty   string         `json:"counterparty,omitempty"`
	EntryFee       int64          `json:"entry_fee"`
	Direction      bool           `json:"direction"`
	PriceSource    string         `json:"price_source"`
	ReferencePrice *PriceResponse `json:"reference_price,omitempty"`
	Status         string         `json:"status"`
	CustodyBalance int64          `json:"custody_balance"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type SettleResponse struct {
	Escrow      EscrowResponse `json:"escrow"`
	Winner      string         `json:"winner"`
	Payout      int64          `json:"payout"`
	MovePercent string         `json:"move_percent"`
	SettlePrice PriceResponse  `json:"settle_price"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func FromQuote(q engine.PriceQuote) PriceResponse {
	return PriceResponse{
		Source:     q.Source,
		Mantissa:   q.Mantissa,
		Exponent:   q.Exponent,
		Conf:       q.Conf,
		Price:      q.String(),
		ObservedAt: q.ObservedAt,
	}
}

func FromEscrow(e *engine.Escrow) EscrowResponse {
	out := EscrowResponse{
		ID:             e.ID,
		Seed:           e.Seed,
		Creator:        e.Creator,
		Counterparty:   e.Counterparty,
		EntryFee:       e.EntryFee,
		Direction:      e.Direction,
		PriceSource:    e.PriceSource,
		Status:         e.Status.String(),
		CustodyBalance: e.CustodyBalance,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	if e.ReferencePrice != nil {
		p := FromQuote(*e.ReferencePrice)
		out.ReferencePrice = &p
	}
	return out
}

func FromSettlement(s *engine.Settlement) SettleResponse {
	return SettleResponse{
		Escrow:      FromEscrow(s.Escrow),
		Winner:      s.Winner,
		Payout:      s.Payout,
		MovePercent: s.Move.String(),
		SettlePrice: FromQuote(s.Price),
	}
}
