package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

// Tipos de lançamento gravados no ledger
const (
	OpDeposit   = "DEPOSIT"
	OpEscrowIn  = "ESCROW_IN"
	OpEscrowOut = "ESCROW_OUT"
	OpDebit     = "DEBIT"
	OpCredit    = "CREDIT"
)

// LedgerEntry é uma linha do livro-razão; Amount é sempre positivo
type LedgerEntry struct {
	Party     string
	Operation string
	Amount    int64
	Ref       string
	CreatedAt time.Time
}

// operationFor deriva o tipo do lançamento a partir da referência da custódia
func operationFor(ref string, credit bool) string {
	switch {
	case strings.HasPrefix(ref, "escrow-in:"):
		return OpEscrowIn
	case strings.HasPrefix(ref, "escrow-out:"):
		return OpEscrowOut
	case strings.HasPrefix(ref, "deposit:"):
		return OpDeposit
	case credit:
		return OpCredit
	default:
		return OpDebit
	}
}

// Memory implementa Transactor em memória. Cada Atomic roda sob um mutex global
// e restaura o snapshot anterior se fn falhar.
type Memory struct {
	mu       sync.Mutex
	escrows  map[string]*engine.Escrow
	retired  map[string]struct{}
	balances map[string]int64
	entries  []LedgerEntry
	nowFn    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		escrows:  make(map[string]*engine.Escrow),
		retired:  make(map[string]struct{}),
		balances: make(map[string]int64),
		nowFn:    time.Now,
	}
}

// Atomic executa fn com store e ledger em memória; erro desfaz tudo
func (m *Memory) Atomic(ctx context.Context, fn func(ctx context.Context, u engine.Unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx, memoryUnit{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Deposit credita saldo fora de qualquer escrow (carteira de teste / modo local)
func (m *Memory) Deposit(party string, amount int64, ref string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(party, amount, "deposit:"+ref)
	return m.balances[party]
}

// Read devolve uma cópia do escrow vivo sem abrir unidade
func (m *Memory) Read(ctx context.Context, id string) (*engine.Escrow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escrows[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return esc.Clone(), nil
}

// BalanceOf lê o saldo corrente sem abrir unidade
func (m *Memory) BalanceOf(party string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[party]
}

// Entries devolve os lançamentos da parte, do mais recente para o mais antigo
func (m *Memory) Entries(party string) []LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].Party == party {
			out = append(out, m.entries[i])
		}
	}
	return out
}

// TotalBalance soma todos os saldos, custódias incluídas
func (m *Memory) TotalBalance() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, b := range m.balances {
		sum += b
	}
	return sum
}

type memorySnapshot struct {
	escrows  map[string]*engine.Escrow
	retired  map[string]struct{}
	balances map[string]int64
	entries  int
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		escrows:  make(map[string]*engine.Escrow, len(m.escrows)),
		retired:  make(map[string]struct{}, len(m.retired)),
		balances: make(map[string]int64, len(m.balances)),
		entries:  len(m.entries),
	}
	for k, v := range m.escrows {
		s.escrows[k] = v.Clone()
	}
	for k := range m.retired {
		s.retired[k] = struct{}{}
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.escrows = s.escrows
	m.retired = s.retired
	m.balances = s.balances
	m.entries = m.entries[:s.entries]
}

func (m *Memory) credit(party string, amount int64, ref string) {
	m.balances[party] += amount
	m.entries = append(m.entries, LedgerEntry{
		Party:     party,
		Operation: operationFor(ref, true),
		Amount:    amount,
		Ref:       ref,
		CreatedAt: m.nowFn().UTC(),
	})
}

type memoryUnit struct{ m *Memory }

func (u memoryUnit) Records() engine.RecordStore { return memoryRecords(u) }
func (u memoryUnit) Ledger() engine.Ledger       { return memoryLedger(u) }

type memoryRecords struct{ m *Memory }

func (r memoryRecords) Create(_ context.Context, esc *engine.Escrow) error {
	if _, ok := r.m.escrows[esc.ID]; ok {
		return engine.ErrDuplicateID
	}
	if _, ok := r.m.retired[esc.ID]; ok {
		return engine.ErrDuplicateID
	}
	if err := esc.Validate(); err != nil {
		return err
	}
	r.m.escrows[esc.ID] = esc.Clone()
	return nil
}

func (r memoryRecords) Get(_ context.Context, id string) (*engine.Escrow, error) {
	esc, ok := r.m.escrows[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	return esc.Clone(), nil
}

func (r memoryRecords) Save(_ context.Context, esc *engine.Escrow) error {
	if _, ok := r.m.escrows[esc.ID]; !ok {
		return engine.ErrNotFound
	}
	if err := esc.Validate(); err != nil {
		return err
	}
	r.m.escrows[esc.ID] = esc.Clone()
	return nil
}

func (r memoryRecords) Retire(_ context.Context, id string) error {
	esc, ok := r.m.escrows[id]
	if !ok {
		return engine.ErrNotFound
	}
	if !esc.Status.Terminal() {
		return errNotTerminal(id, esc.Status)
	}
	delete(r.m.escrows, id)
	r.m.retired[id] = struct{}{}
	return nil
}

type memoryLedger struct{ m *Memory }

func (l memoryLedger) Debit(_ context.Context, party string, amount int64, ref string) error {
	if amount <= 0 {
		return errNonPositive(amount)
	}
	if l.m.balances[party] < amount {
		return engine.ErrInsufficientBalance
	}
	l.m.balances[party] -= amount
	l.m.entries = append(l.m.entries, LedgerEntry{
		Party:     party,
		Operation: operationFor(ref, false),
		Amount:    amount,
		Ref:       ref,
		CreatedAt: l.m.nowFn().UTC(),
	})
	return nil
}

func (l memoryLedger) Credit(_ context.Context, party string, amount int64, ref string) error {
	if amount <= 0 {
		return errNonPositive(amount)
	}
	l.m.credit(party, amount, ref)
	return nil
}

func (l memoryLedger) Balance(_ context.Context, party string) (int64, error) {
	return l.m.balances[party], nil
}

var (
	_ engine.Transactor   = (*Memory)(nil)
	_ engine.RecordReader = (*Memory)(nil)
)
