package engine

import (
	"context"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// RecordStore guarda um Escrow por id.
// Chamadores precisam do lock lógico do id (Locker) para Save.
type RecordStore interface {
	// Create falha com ErrDuplicateID se o id já existe (vivo ou aposentado)
	Create(ctx context.Context, esc *Escrow) error
	// Get falha com ErrNotFound se o id não existe ou foi aposentado
	Get(ctx context.Context, id string) (*Escrow, error)
	Save(ctx context.Context, esc *Escrow) error
	// Retire só é válido a partir de status terminal
	Retire(ctx context.Context, id string) error
}

// Ledger é o livro-razão externo de saldos.
// Debit falha com ErrInsufficientBalance; nunca deixa saldo negativo.
type Ledger interface {
	Debit(ctx context.Context, party string, amount int64, ref string) error
	Credit(ctx context.Context, party string, amount int64, ref string) error
	Balance(ctx context.Context, party string) (int64, error)
}

// Unit expõe store e ledger dentro de uma mesma unidade atômica.
type Unit interface {
	Records() RecordStore
	Ledger() Ledger
}

// Transactor executa fn atomicamente: ou tudo que fn fez é confirmado, ou nada.
type Transactor interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, u Unit) error) error
}

// RecordReader é opcional no Transactor: leitura do escrow vivo sem abrir unidade
// nem travar o registro. Engine.Get usa quando disponível.
type RecordReader interface {
	Read(ctx context.Context, id string) (*Escrow, error)
}

// Emitter publica eventos de domínio após o commit de uma transição.
type Emitter interface {
	Emit(ctx context.Context, ev events.EscrowEvent) error
}

// NoopEmitter descarta eventos
type NoopEmitter struct{}

func (NoopEmitter) Emit(context.Context, events.EscrowEvent) error { return nil }

// Locker garante exclusão mútua por id. O unlock devolvido pode ser chamado mais de uma vez.
type Locker interface {
	Acquire(ctx context.Context, key string) (unlock func(), err error)
}
