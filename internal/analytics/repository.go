package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metrik/metrik/internal/fiscal"
)

// PgRepository reads sales totals from posted vouchers.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const salesPointsSQL = `SELECT date,
	CASE WHEN voucher_type = 'sales_return' THEN -grand_total ELSE grand_total END
FROM vouchers
WHERE business_id = $1 AND status = 'posted'
	AND voucher_type IN ('sales_invoice', 'sales_return')
	AND date >= $2 AND date <= $3`

// SalesPoints returns one point per posted sales invoice or return.
func (r *PgRepository) SalesPoints(ctx context.Context, businessID string, from, to time.Time) ([]fiscal.Point, error) {
	rows, err := r.pool.Query(ctx, salesPointsSQL, businessID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (fiscal.Point, error) {
		var p fiscal.Point
		err := row.Scan(&p.Date, &p.Amount)
		return p, err
	})
}
