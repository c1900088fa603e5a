package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

// uniqueViolation é o SQLSTATE do Postgres para chave duplicada
const uniqueViolation = "23505"

// Postgres implementa Transactor sobre database/sql: registro do escrow e ledger
// de carteiras compartilham a mesma *sql.Tx.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Atomic abre uma transação, executa fn e faz commit; qualquer erro faz rollback
func (p *Postgres) Atomic(ctx context.Context, fn func(ctx context.Context, u engine.Unit) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, pgUnit{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type pgUnit struct{ tx *sql.Tx }

func (u pgUnit) Records() engine.RecordStore { return pgRecords(u) }
func (u pgUnit) Ledger() engine.Ledger       { return pgLedger(u) }

type pgRecords struct{ tx *sql.Tx }

func (r pgRecords) Create(ctx context.Context, esc *engine.Escrow) error {
	if err := esc.Validate(); err != nil {
		return err
	}
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO escrows
		  (id, seed, creator, entry_fee_cents, direction, price_source, status, custody_balance_cents, created_at, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		esc.ID, strconv.FormatUint(esc.Seed, 10), esc.Creator, esc.EntryFee, esc.Direction,
		esc.PriceSource, esc.Status.String(), esc.CustodyBalance, esc.CreatedAt, esc.UpdatedAt,
	)
	return mapInsertError(err)
}

// mapInsertError traduz chave duplicada do Postgres em ErrDuplicateID
func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return engine.ErrDuplicateID
	}
	return err
}

// Get trava a linha (FOR UPDATE) para que a transição leia e grave sob o mesmo lock
func (r pgRecords) Get(ctx context.Context, id string) (*engine.Escrow, error) {
	return loadEscrow(ctx, r.tx, id, true)
}

// Read lê o escrow vivo fora de transação e sem lock de linha
func (p *Postgres) Read(ctx context.Context, id string) (*engine.Escrow, error) {
	return loadEscrow(ctx, p.db, id, false)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func escrowQuery(forUpdate bool) string {
	q := `
		SELECT id, seed, creator, counterparty, entry_fee_cents, direction, price_source,
		       ref_mantissa, ref_exponent, ref_conf, ref_observed_at,
		       status, custody_balance_cents, created_at, updated_at
		FROM escrows
		WHERE id=$1 AND retired_at IS NULL`
	if forUpdate {
		q += `
		FOR UPDATE`
	}
	return q
}

func loadEscrow(ctx context.Context, q rowQuerier, id string, forUpdate bool) (*engine.Escrow, error) {
	var (
		esc          engine.Escrow
		seed         string
		counterparty sql.NullString
		status       string
		refMantissa  sql.NullInt64
		refExponent  sql.NullInt32
		refConf      sql.NullInt64
		refAt        sql.NullTime
	)
	err := q.QueryRowContext(ctx, escrowQuery(forUpdate), id).Scan(
		&esc.ID, &seed, &esc.Creator, &counterparty, &esc.EntryFee, &esc.Direction, &esc.PriceSource,
		&refMantissa, &refExponent, &refConf, &refAt,
		&status, &esc.CustodyBalance, &esc.CreatedAt, &esc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	if esc.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("escrow %s: bad seed %q: %w", id, seed, err)
	}
	if esc.Status, err = engine.ParseStatus(status); err != nil {
		return nil, err
	}
	esc.Counterparty = counterparty.String
	if refMantissa.Valid {
		esc.ReferencePrice = &engine.PriceQuote{
			Source:     esc.PriceSource,
			Mantissa:   refMantissa.Int64,
			Exponent:   refExponent.Int32,
			Conf:       uint64(refConf.Int64),
			ObservedAt: refAt.Time,
		}
	}
	return &esc, nil
}

func (r pgRecords) Save(ctx context.Context, esc *engine.Escrow) error {
	if err := esc.Validate(); err != nil {
		return err
	}
	var (
		refMantissa sql.NullInt64
		refExponent sql.NullInt32
		refConf     sql.NullInt64
		refAt       sql.NullTime
	)
	if q := esc.ReferencePrice; q != nil {
		refMantissa = sql.NullInt64{Int64: q.Mantissa, Valid: true}
		refExponent = sql.NullInt32{Int32: q.Exponent, Valid: true}
		refConf = sql.NullInt64{Int64: int64(q.Conf), Valid: true}
		refAt = sql.NullTime{Time: q.ObservedAt, Valid: !q.ObservedAt.IsZero()}
	}
	res, err := r.tx.ExecContext(ctx, `
		UPDATE escrows SET
		  counterparty = NULLIF($2, ''),
		  direction = $3,
		  ref_mantissa = $4,
		  ref_exponent = $5,
		  ref_conf = $6,
		  ref_observed_at = $7,
		  status = $8,
		  custody_balance_cents = $9,
		  updated_at = $10
		WHERE id=$1 AND retired_at IS NULL`,
		esc.ID, esc.Counterparty, esc.Direction,
		refMantissa, refExponent, refConf, refAt,
		esc.Status.String(), esc.CustodyBalance, esc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// Retire mantém a linha como lápide: o id continua reservado, mas some das leituras
func (r pgRecords) Retire(ctx context.Context, id string) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE escrows SET retired_at = now()
		WHERE id=$1 AND retired_at IS NULL AND status IN ('CLOSED','WITHDRAWN')`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("escrow %s: not retirable", id)
	}
	return nil
}

type pgLedger struct{ tx *sql.Tx }

// walletFor trava a carteira da parte, criando-a com saldo zero se preciso
func (l pgLedger) walletFor(ctx context.Context, party string) (id string, balance int64, err error) {
	err = l.tx.QueryRowContext(ctx,
		`SELECT id, balance_cents FROM wallets WHERE user_id=$1 FOR UPDATE`, party).Scan(&id, &balance)
	if err == sql.ErrNoRows {
		id = uuid.New().String()
		if _, err = l.tx.ExecContext(ctx,
			`INSERT INTO wallets(id, user_id, balance_cents, version) VALUES($1,$2,0,1)`, id, party); err != nil {
			return "", 0, err
		}
		return id, 0, nil
	}
	return id, balance, err
}

func (l pgLedger) Debit(ctx context.Context, party string, amount int64, ref string) error {
	if amount <= 0 {
		return errNonPositive(amount)
	}
	walletID, balance, err := l.walletFor(ctx, party)
	if err != nil {
		return err
	}
	if balance < amount {
		return engine.ErrInsufficientBalance
	}
	return l.apply(ctx, walletID, -amount, operationFor(ref, false), amount, ref)
}

func (l pgLedger) Credit(ctx context.Context, party string, amount int64, ref string) error {
	if amount <= 0 {
		return errNonPositive(amount)
	}
	walletID, _, err := l.walletFor(ctx, party)
	if err != nil {
		return err
	}
	return l.apply(ctx, walletID, amount, operationFor(ref, true), amount, ref)
}

func (l pgLedger) apply(ctx context.Context, walletID string, delta int64, op string, amount int64, ref string) error {
	if _, err := l.tx.ExecContext(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + $1, version = version + 1, updated_at = now() WHERE id=$2`,
		delta, walletID); err != nil {
		return err
	}
	_, err := l.tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount_cents, description, related_escrow_id, created_at)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		walletID, op, amount, ref, escrowIDFromRef(ref), time.Now().UTC())
	return err
}

func (l pgLedger) Balance(ctx context.Context, party string) (int64, error) {
	var bal int64
	err := l.tx.QueryRowContext(ctx, `SELECT balance_cents FROM wallets WHERE user_id=$1`, party).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return bal, err
}

// escrowIDFromRef extrai o id do escrow de referências "escrow-in:<id>" / "escrow-out:<id>"
func escrowIDFromRef(ref string) sql.NullString {
	for _, p := range []string{"escrow-in:", "escrow-out:"} {
		if id, ok := strings.CutPrefix(ref, p); ok && id != "" {
			return sql.NullString{String: id, Valid: true}
		}
	}
	return sql.NullString{}
}

var (
	_ engine.Transactor   = (*Postgres)(nil)
	_ engine.RecordReader = (*Postgres)(nil)
)
