package repo

import (
	"context"
	"database/sql"

	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

type ReadRepo struct {
	DB *sql.DB
}

func (r *ReadRepo) ListCurrent(ctx context.Context) ([]events.PriceUpdate, error) {
	const q = `
		SELECT source, mantissa, exponent, conf, COALESCE(provider, ''), version, publish_time
		FROM price_current
		ORDER BY source;
	`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []events.PriceUpdate
	for rows.Next() {
		var u events.PriceUpdate
		var conf int64
		if err := rows.Scan(&u.Source, &u.Mantissa, &u.Exponent, &conf, &u.Provider, &u.Version, &u.PublishTime); err != nil {
			return nil, err
		}
		u.Conf = uint64(conf)
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetCurrent devolve sql.ErrNoRows quando a fonte nunca publicou
func (r *ReadRepo) GetCurrent(ctx context.Context, source string) (events.PriceUpdate, error) {
	const q = `
		SELECT source, mantissa, exponent, conf, COALESCE(provider, ''), version, publish_time
		FROM price_current
		WHERE source = $1;
	`
	var u events.PriceUpdate
	var conf int64
	err := r.DB.QueryRowContext(ctx, q, source).Scan(&u.Source, &u.Mantissa, &u.Exponent, &conf, &u.Provider, &u.Version, &u.PublishTime)
	u.Conf = uint64(conf)
	return u, err
}

func (r *ReadRepo) History(ctx context.Context, source string, limit int) ([]events.PriceUpdate, error) {
	const q = `
		SELECT source, mantissa, exponent, conf, version, publish_time
		FROM price_history
		WHERE source = $1
		ORDER BY publish_time DESC, id DESC
		LIMIT $2;
	`
	rows, err := r.DB.QueryContext(ctx, q, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []events.PriceUpdate
	for rows.Next() {
		var u events.PriceUpdate
		var conf int64
		if err := rows.Scan(&u.Source, &u.Mantissa, &u.Exponent, &conf, &u.Version, &u.PublishTime); err != nil {
			return nil, err
		}
		u.Conf = uint64(conf)
		out = append(out, u)
	}
	return out, rows.Err()
}
