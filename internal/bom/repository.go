package bom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metrik/metrik/internal/platform/db"
)

// Repository persists BOMs in PostgreSQL. Inputs are stored as jsonb.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const bomColumns = `id, business_id, COALESCE(name, ''), output_item_id, output_quantity, inputs, version, status, created_at`

func scanBOM(row pgx.Row) (BOM, error) {
	var (
		b      BOM
		inputs []byte
	)
	if err := row.Scan(&b.ID, &b.BusinessID, &b.Name, &b.OutputItemID, &b.OutputQuantity, &inputs, &b.Version, &b.Status, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BOM{}, ErrNotFound
		}
		return BOM{}, err
	}
	if err := json.Unmarshal(inputs, &b.Inputs); err != nil {
		return BOM{}, fmt.Errorf("bom: decode inputs: %w", err)
	}
	return b, nil
}

// Get loads one BOM.
func (r *Repository) Get(ctx context.Context, businessID, id string) (BOM, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bomColumns+` FROM boms WHERE business_id = $1 AND id = $2`, businessID, id)
	return scanBOM(row)
}

// Active returns the active BOM for outputItemID.
func (r *Repository) Active(ctx context.Context, businessID, outputItemID string) (BOM, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bomColumns+` FROM boms
WHERE business_id = $1 AND output_item_id = $2 AND status = 'active'`, businessID, outputItemID)
	return scanBOM(row)
}

// ListByOutput returns every version for outputItemID, newest first.
func (r *Repository) ListByOutput(ctx context.Context, businessID, outputItemID string) ([]BOM, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bomColumns+` FROM boms
WHERE business_id = $1 AND output_item_id = $2 ORDER BY version DESC`, businessID, outputItemID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (BOM, error) {
		return scanBOM(row)
	})
}

func (t *txRepo) GetForUpdate(ctx context.Context, businessID, id string) (BOM, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+bomColumns+` FROM boms WHERE business_id = $1 AND id = $2 FOR UPDATE`, businessID, id)
	return scanBOM(row)
}

func (t *txRepo) LatestVersion(ctx context.Context, businessID, outputItemID string) (int, error) {
	var latest int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM boms
WHERE business_id = $1 AND output_item_id = $2`, businessID, outputItemID).Scan(&latest)
	return latest, err
}

func (t *txRepo) Insert(ctx context.Context, b BOM) error {
	inputs, err := json.Marshal(b.Inputs)
	if err != nil {
		return fmt.Errorf("bom: encode inputs: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO boms (id, business_id, name, output_item_id, output_quantity, inputs, version, status, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`,
		b.ID, b.BusinessID, b.Name, b.OutputItemID, b.OutputQuantity, inputs, b.Version, b.Status, b.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %d", ErrVersionExists, b.Version)
	}
	return err
}

func (t *txRepo) UpdateInputs(ctx context.Context, b BOM) error {
	inputs, err := json.Marshal(b.Inputs)
	if err != nil {
		return fmt.Errorf("bom: encode inputs: %w", err)
	}
	_, err = t.tx.Exec(ctx, `UPDATE boms SET inputs = $3, updated_at = NOW() WHERE business_id = $1 AND id = $2`, b.BusinessID, b.ID, inputs)
	return err
}

func (t *txRepo) ArchiveActive(ctx context.Context, businessID, outputItemID string) error {
	_, err := t.tx.Exec(ctx, `UPDATE boms SET status = 'archived', updated_at = NOW()
WHERE business_id = $1 AND output_item_id = $2 AND status = 'active'`, businessID, outputItemID)
	return err
}

func (t *txRepo) SetStatus(ctx context.Context, businessID, id string, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE boms SET status = $3, updated_at = NOW() WHERE business_id = $1 AND id = $2`, businessID, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
