package events

import "strings"

// CustodyAccountPrefix reserva, no ledger de carteiras, o espaço das contas de custódia.
// Nenhuma parte pode usar uma identidade com esse prefixo.
const CustodyAccountPrefix = "escrow:"

// CustodyAccount é a conta do ledger que guarda a custódia de um escrow
func CustodyAccount(escrowID string) string { return CustodyAccountPrefix + escrowID }

// IsCustodyAccount indica se a identidade cai no espaço reservado às custódias
func IsCustodyAccount(party string) bool {
	return strings.HasPrefix(strings.TrimSpace(party), CustodyAccountPrefix)
}
