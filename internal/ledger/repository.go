package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads non-cancelled entries from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemOpeningSQL = `SELECT
	COALESCE(SUM(CASE WHEN direction = 'in' THEN quantity ELSE -quantity END), 0),
	COALESCE(SUM(CASE WHEN direction = 'in' THEN quantity * rate ELSE -quantity * rate END), 0)
FROM inventory_entries
WHERE business_id = $1 AND item_id = $2 AND NOT cancelled AND date < $3
	AND ($4 = '' OR material_centre_id::text = $4)`

const itemEntriesSQL = `SELECT date, sequence, voucher_id, voucher_type, voucher_number, direction, quantity, rate, narration
FROM inventory_entries
WHERE business_id = $1 AND item_id = $2 AND NOT cancelled AND date >= $3 AND date <= $4
	AND ($5 = '' OR material_centre_id::text = $5)
ORDER BY date, sequence`

// ItemEntries returns the carried-forward position and the period's movements
// of one item.
func (r *Repository) ItemEntries(ctx context.Context, q Query, from, to time.Time) (ItemOpening, []ItemEntry, error) {
	var opening ItemOpening
	if err := r.pool.QueryRow(ctx, itemOpeningSQL, q.BusinessID, q.SubjectID, from, q.MaterialCentreID).
		Scan(&opening.Quantity, &opening.Value); err != nil {
		return ItemOpening{}, nil, err
	}
	var configured ItemOpening
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(opening_quantity, 0), COALESCE(opening_value, 0)
FROM items WHERE business_id = $1 AND id = $2`, q.BusinessID, q.SubjectID).Scan(&configured.Quantity, &configured.Value)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return ItemOpening{}, nil, err
	}
	if q.MaterialCentreID == "" {
		opening.Quantity += configured.Quantity
		opening.Value += configured.Value
	}

	rows, err := r.pool.Query(ctx, itemEntriesSQL, q.BusinessID, q.SubjectID, from, to, q.MaterialCentreID)
	if err != nil {
		return ItemOpening{}, nil, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ItemEntry, error) {
		var e ItemEntry
		err := row.Scan(&e.Date, &e.Sequence, &e.VoucherID, &e.VoucherType, &e.VoucherNumber,
			&e.Direction, &e.Quantity, &e.Rate, &e.Narration)
		return e, err
	})
	if err != nil {
		return ItemOpening{}, nil, err
	}
	return opening, entries, nil
}

const partyEntriesSQL = `SELECT date, sequence, voucher_id, voucher_type, voucher_number, debit, credit, narration
FROM account_entries
WHERE business_id = $1 AND account_id = $2 AND NOT cancelled AND date >= $3 AND date <= $4
ORDER BY date, sequence`

// PartyEntries returns the net movement before from and the period's
// postings of one account. The configured opening balance is not included.
func (r *Repository) PartyEntries(ctx context.Context, q Query, from, to time.Time) (float64, []PartyEntry, error) {
	var carried float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(debit - credit), 0) FROM account_entries
WHERE business_id = $1 AND account_id = $2 AND NOT cancelled AND date < $3`, q.BusinessID, q.SubjectID, from).Scan(&carried)
	if err != nil {
		return 0, nil, err
	}
	rows, err := r.pool.Query(ctx, partyEntriesSQL, q.BusinessID, q.SubjectID, from, to)
	if err != nil {
		return 0, nil, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PartyEntry, error) {
		var e PartyEntry
		err := row.Scan(&e.Date, &e.Sequence, &e.VoucherID, &e.VoucherType, &e.VoucherNumber,
			&e.Debit, &e.Credit, &e.Narration)
		return e, err
	})
	if err != nil {
		return 0, nil, err
	}
	return carried, entries, nil
}
