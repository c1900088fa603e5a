package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

// PostgresRepo persiste preços correntes e histórico no Postgres
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertCurrent insere ou atualiza o preço corrente da fonte em price_current.
// Atualizações com publish_time anterior ao gravado são ignoradas.
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, u events.PriceUpdate) error {
	const q = `
		INSERT INTO price_current
		  (source, mantissa, exponent, conf, provider, version, publish_time)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (source) DO UPDATE SET
		  mantissa     = EXCLUDED.mantissa,
		  exponent     = EXCLUDED.exponent,
		  conf         = EXCLUDED.conf,
		  provider     = EXCLUDED.provider,
		  version      = EXCLUDED.version,
		  publish_time = EXCLUDED.publish_time
		WHERE price_current.publish_time <= EXCLUDED.publish_time
	`
	_, err := r.DB.ExecContext(ctx, q,
		u.Source, u.Mantissa, u.Exponent, int64(u.Conf), u.Provider, u.Version, u.PublishTime,
	)
	return err
}

// InsertHistory acrescenta a atualização ao histórico (price_history)
func (r *PostgresRepo) InsertHistory(ctx context.Context, u events.PriceUpdate) error {
	const q = `
		INSERT INTO price_history
		  (source, mantissa, exponent, conf, version, publish_time)
		VALUES
		  ($1,$2,$3,$4,$5,$6)
	`
	_, err := r.DB.ExecContext(ctx, q,
		u.Source, u.Mantissa, u.Exponent, int64(u.Conf), u.Version, u.PublishTime,
	)
	return err
}
