package engine

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// Status representa os estados do ciclo de vida de um escrow.
// Closed e Withdrawn são terminais; o registro é aposentado ao atingi-los.
type Status uint8

const (
	StatusCreated Status = iota + 1
	StatusOpen
	StatusAccepted
	StatusClosed
	StatusWithdrawn
)

// String retorna o nome persistido do status
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusOpen:
		return "OPEN"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusClosed:
		return "CLOSED"
	case StatusWithdrawn:
		return "WITHDRAWN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// Valid indica se o valor pertence ao conjunto fechado de estados
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusOpen, StatusAccepted, StatusClosed, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// Terminal indica se o status encerra o ciclo de vida do escrow
func (s Status) Terminal() bool {
	switch s {
	case StatusClosed, StatusWithdrawn:
		return true
	case StatusCreated, StatusOpen, StatusAccepted:
		return false
	default:
		return false
	}
}

// ParseStatus converte o nome persistido de volta para Status
func ParseStatus(v string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "CREATED":
		return StatusCreated, nil
	case "OPEN":
		return StatusOpen, nil
	case "ACCEPTED":
		return StatusAccepted, nil
	case "CLOSED":
		return StatusClosed, nil
	case "WITHDRAWN":
		return StatusWithdrawn, nil
	default:
		return 0, fmt.Errorf("invalid escrow status: %q", v)
	}
}

// Escrow é a raiz de agregado de um jogo entre criador e contraparte.
type Escrow struct {
	ID             string
	Seed           uint64
	Creator        string
	Counterparty   string // vazio até Accepted
	EntryFee       int64
	Direction      bool // true: criador ganha se o preço subir
	PriceSource    string
	ReferencePrice *PriceQuote // nil enquanto Created
	Status         Status
	CustodyBalance int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone retorna uma cópia profunda para que chamadores possam mutar sem afetar o registro armazenado
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.ReferencePrice != nil {
		ref := *e.ReferencePrice
		clone.ReferencePrice = &ref
	}
	return &clone
}

// VaultAccount é a conta do ledger que guarda a custódia do escrow
func (e *Escrow) VaultAccount() string { return VaultAccount(e.ID) }

// VaultAccount monta o identificador da conta de custódia de um escrow
func VaultAccount(id string) string { return events.CustodyAccount(id) }

// validParty recusa identidades vazias e as que colidem com contas de custódia
func validParty(id string) bool {
	return strings.TrimSpace(id) != "" && !events.IsCustodyAccount(id)
}

// Validate confere os invariantes entre status, custódia, contraparte e preço de referência.
func (e *Escrow) Validate() error {
	if e == nil {
		return fmt.Errorf("nil escrow")
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("escrow id required")
	}
	if strings.TrimSpace(e.Creator) == "" {
		return fmt.Errorf("escrow creator required")
	}
	if e.EntryFee <= 0 {
		return fmt.Errorf("escrow entry fee must be positive")
	}
	if !e.Status.Valid() {
		return fmt.Errorf("invalid escrow status: %d", e.Status)
	}

	var wantCustody int64
	switch e.Status {
	case StatusCreated:
		wantCustody = 0
	case StatusOpen:
		wantCustody = e.EntryFee
	case StatusAccepted:
		wantCustody = 2 * e.EntryFee
	case StatusClosed, StatusWithdrawn:
		wantCustody = 0
	}
	if e.CustodyBalance != wantCustody {
		return fmt.Errorf("escrow %s: custody %d does not match status %s (want %d)", e.ID, e.CustodyBalance, e.Status, wantCustody)
	}

	hasCounterparty := e.Counterparty != ""
	switch e.Status {
	case StatusAccepted, StatusClosed:
		if !hasCounterparty {
			return fmt.Errorf("escrow %s: counterparty required in status %s", e.ID, e.Status)
		}
	case StatusCreated, StatusOpen, StatusWithdrawn:
		if hasCounterparty {
			return fmt.Errorf("escrow %s: counterparty set in status %s", e.ID, e.Status)
		}
	}

	hasRef := e.ReferencePrice != nil
	if e.Status == StatusCreated && hasRef {
		return fmt.Errorf("escrow %s: reference price set before funding", e.ID)
	}
	if e.Status != StatusCreated && e.Status != StatusWithdrawn && !hasRef {
		return fmt.Errorf("escrow %s: reference price required in status %s", e.ID, e.Status)
	}
	return nil
}

// DeriveID calcula o identificador determinístico do escrow a partir de (criador, seed).
// A seed é apenas entropia de unicidade, não um valor de segurança.
func DeriveID(creator string, seed uint64) string {
	var seedLE [8]byte
	binary.LittleEndian.PutUint64(seedLE[:], seed)
	return ethcrypto.Keccak256Hash([]byte("escrow"), []byte(creator), seedLE[:]).Hex()
}
