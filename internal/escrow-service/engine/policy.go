package engine

import (
	"fmt"
	"strings"
)

const (
	DefaultAcceptToleranceBps int64 = 100 // 1%
	DefaultCloseThresholdBps  int64 = 500 // 5%
	DefaultPriceSource              = "ETH/USD"
)

// Policy reúne os limites de preço que regem aceite e liquidação
type Policy struct {
	AcceptToleranceBps int64
	CloseThresholdBps  int64
	DefaultPriceSource string
}

// DefaultPolicy devolve os limites padrão (1% para aceitar, 5% para liquidar)
func DefaultPolicy() Policy {
	return Policy{
		AcceptToleranceBps: DefaultAcceptToleranceBps,
		CloseThresholdBps:  DefaultCloseThresholdBps,
		DefaultPriceSource: DefaultPriceSource,
	}
}

// Validate rejeita limites fora de [0, 10000] bps
func (p Policy) Validate() error {
	if p.AcceptToleranceBps < 0 || p.AcceptToleranceBps > 10_000 {
		return fmt.Errorf("accept tolerance bps out of range: %d", p.AcceptToleranceBps)
	}
	if p.CloseThresholdBps <= 0 || p.CloseThresholdBps > 10_000 {
		return fmt.Errorf("close threshold bps out of range: %d", p.CloseThresholdBps)
	}
	if strings.TrimSpace(p.DefaultPriceSource) == "" {
		return fmt.Errorf("default price source required")
	}
	return nil
}

// SettlePolicy decide quem pode disparar a liquidação de um escrow aceito.
type SettlePolicy func(esc *Escrow, caller string) error

// AnyCaller permite que qualquer um liquide quando as condições de preço forem atendidas
func AnyCaller(*Escrow, string) error { return nil }

// ParticipantsOnly restringe a liquidação ao criador e à contraparte
func ParticipantsOnly(esc *Escrow, caller string) error {
	if caller == esc.Creator || caller == esc.Counterparty {
		return nil
	}
	return ErrNotParticipant
}

// SettlePolicyByName resolve a política configurada ("any" ou "participants")
func SettlePolicyByName(name string) (SettlePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return AnyCaller, nil
	case "participants":
		return ParticipantsOnly, nil
	default:
		return nil, fmt.Errorf("unknown settle policy %q", name)
	}
}
