package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metrik/metrik/internal/platform/db"
)

// Repository abstracts account persistence.
type Repository interface {
	List(ctx context.Context, businessID string) ([]Account, error)
	Get(ctx context.Context, businessID, id string) (Account, error)
	Insert(ctx context.Context, a Account) error
	Update(ctx context.Context, a Account) error
	Delete(ctx context.Context, businessID, id string) error
	HasEntries(ctx context.Context, businessID, id string) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, business_id, name, code, type, COALESCE(account_group, ''), opening_debit, opening_credit, is_system, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.BusinessID, &a.Name, &a.Code, &a.Type, &a.Group,
		&a.Opening.Debit, &a.Opening.Credit, &a.IsSystem, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

func (r *repository) List(ctx context.Context, businessID string) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE business_id = $1 ORDER BY code`, businessID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Account, error) {
		return scanAccount(row)
	})
}

func (r *repository) Get(ctx context.Context, businessID, id string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE business_id = $1 AND id = $2`, businessID, id))
}

func (r *repository) Insert(ctx context.Context, a Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts
(id, business_id, name, code, type, account_group, opening_debit, opening_credit, is_system, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $10)`,
		a.ID, a.BusinessID, a.Name, a.Code, a.Type, a.Group, a.Opening.Debit, a.Opening.Credit, a.IsSystem, a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *repository) Update(ctx context.Context, a Account) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET name = $3, code = $4, type = $5, account_group = NULLIF($6, ''),
opening_debit = $7, opening_credit = $8, updated_at = NOW()
WHERE business_id = $1 AND id = $2 AND NOT is_system`,
		a.BusinessID, a.ID, a.Name, a.Code, a.Type, a.Group, a.Opening.Debit, a.Opening.Credit)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, businessID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE business_id = $1 AND id = $2 AND NOT is_system`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) HasEntries(ctx context.Context, businessID, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM account_entries WHERE business_id = $1 AND account_id = $2)`, businessID, id).Scan(&exists)
	return exists, err
}
