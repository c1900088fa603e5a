package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// Postgres implementa operações de carteira em banco.
// Os movimentos de custódia (ESCROW_IN/ESCROW_OUT) são gravados pelo escrow-service
// nas mesmas tabelas; aqui ficam consulta e depósito.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrNotFound        = errors.New("not found")
	ErrReservedAccount = errors.New("account reserved for escrow custody")
)

// Entry é uma linha do wallet_ledger
type Entry struct {
	ID          int64
	Operation   string
	AmountCents int64
	Description string
	EscrowID    string
	CreatedAt   time.Time
}

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
// Usa transação para garantir atomicidade
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	id, bal, err := lockOrCreate(ctx, tx, userID)
	if err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return id, bal, nil
}

// Deposit incrementa o saldo da carteira e registra a operação no ledger
// Garante lock pessimista na linha da carteira
func (p *Postgres) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	if events.IsCustodyAccount(userID) {
		return "", 0, ErrReservedAccount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	id, _, err := lockOrCreate(ctx, tx, userID)
	if err != nil {
		return "", 0, err
	}

	if err = tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1, updated_at = now()
		 WHERE id=$2 RETURNING balance_cents`, amount, id).Scan(&newBalance); err != nil {
		return "", 0, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description) VALUES($1,'DEPOSIT',$2,$3)`,
		id, amount, "deposit:"+externalRef); err != nil {
		return "", 0, err
	}

	if err = tx.Commit(); err != nil {
		return "", 0, err
	}
	return id, newBalance, nil
}

// Ledger lista os lançamentos da carteira do usuário, do mais recente para o mais antigo
func (p *Postgres) Ledger(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT l.id, l.operation_type, l.amount_cents, COALESCE(l.description, ''), COALESCE(l.related_escrow_id, ''), l.created_at
		FROM wallet_ledger l
		JOIN wallets w ON w.id = l.wallet_id
		WHERE w.user_id = $1
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Operation, &e.AmountCents, &e.Description, &e.EscrowID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id=$1)`, userID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
	}
	return out, nil
}

// lockOrCreate trava a carteira do usuário (FOR UPDATE), criando com saldo zero se preciso
func lockOrCreate(ctx context.Context, tx *sql.Tx, userID string) (string, int64, error) {
	var id string
	var bal int64
	err := tx.QueryRowContext(ctx, `SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&id, &bal)
	if err == sql.ErrNoRows {
		id = uuid.New().String()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1)`,
			id, userID); err != nil {
			return "", 0, err
		}
		return id, 0, nil
	}
	return id, bal, err
}
