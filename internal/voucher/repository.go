package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metrik/metrik/internal/platform/db"
)

// Repository persists vouchers and their entries in PostgreSQL.
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

// postTxOptions keeps concurrent posts of one type and year from aborting on
// the shared sequence row. The upsert and FOR UPDATE reads serialize them.
var postTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, postTxOptions, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const voucherColumns = `id, business_id, voucher_type, voucher_number, date, status, financial_year,
COALESCE(narration, ''), COALESCE(material_centre_id::text, ''), COALESCE(destination_material_centre_id::text, ''),
COALESCE(party_id::text, ''), line_items, linked_vouchers, grand_total, contractor_amount,
COALESCE(cancel_reason, ''), COALESCE(created_by::text, '')`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var (
		v            Voucher
		lines, links []byte
	)
	err := row.Scan(&v.ID, &v.BusinessID, &v.Type, &v.Number, &v.Date, &v.Status, &v.FinancialYear,
		&v.Narration, &v.MaterialCentreID, &v.DestinationMaterialCentreID, &v.PartyID, &lines, &links,
		&v.GrandTotal, &v.ContractorAmount, &v.CancelReason, &v.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Voucher{}, ErrNotFound
		}
		return Voucher{}, err
	}
	if err := json.Unmarshal(lines, &v.Lines); err != nil {
		return Voucher{}, fmt.Errorf("voucher: decode lines: %w", err)
	}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &v.Links); err != nil {
			return Voucher{}, fmt.Errorf("voucher: decode links: %w", err)
		}
	}
	return v, nil
}

// Get loads a voucher of the business.
func (r *Repository) Get(ctx context.Context, businessID, id string) (Voucher, error) {
	return scanVoucher(r.pool.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE business_id = $1 AND id = $2`, businessID, id))
}

// List pages through vouchers matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Voucher, int, error) {
	where := []string{"business_id = $1"}
	args := []any{filter.BusinessID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Type != "" {
		add("voucher_type = $%d", filter.Type)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("date <= $%d", filter.To)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Page.PerPage, filter.Page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM vouchers WHERE %s ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		voucherColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *txRepo) NextSequence(ctx context.Context, businessID string, t Type, financialYear string) (int, error) {
	var seq int
	err := r.tx.QueryRow(ctx, `INSERT INTO voucher_sequences (business_id, voucher_type, financial_year, last_seq)
VALUES ($1, $2, $3, 1)
ON CONFLICT (business_id, voucher_type, financial_year) DO UPDATE SET last_seq = voucher_sequences.last_seq + 1
RETURNING last_seq`, businessID, t, financialYear).Scan(&seq)
	return seq, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *txRepo) InsertVoucher(ctx context.Context, v Voucher) error {
	lines, err := json.Marshal(v.Lines)
	if err != nil {
		return err
	}
	links := v.Links
	if links == nil {
		links = []Link{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO vouchers (id, business_id, voucher_type, voucher_number, date, status, financial_year,
narration, material_centre_id, destination_material_centre_id, party_id, line_items, linked_vouchers,
grand_total, contractor_amount, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())`,
		v.ID, v.BusinessID, v.Type, v.Number, v.Date, v.Status, v.FinancialYear,
		nullable(v.Narration), nullable(v.MaterialCentreID), nullable(v.DestinationMaterialCentreID), nullable(v.PartyID),
		lines, linksJSON, v.GrandTotal, v.ContractorAmount, nullable(v.CreatedBy))
	if db.IsUniqueViolation(err) {
		return ErrDuplicateNumber
	}
	return err
}

func (r *txRepo) InsertInventoryEntries(ctx context.Context, entries []InventoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO inventory_entries (business_id, item_id, material_centre_id, voucher_id, voucher_type,
voucher_number, date, direction, quantity, rate, narration)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			e.BusinessID, e.ItemID, e.MaterialCentreID, e.VoucherID, e.VoucherType,
			e.VoucherNumber, e.Date, e.Direction, e.Quantity, e.Rate, e.Narration)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepo) InsertAccountEntries(ctx context.Context, entries []AccountEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO account_entries (business_id, account_id, voucher_id, voucher_type, voucher_number,
date, debit, credit, narration)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.BusinessID, e.AccountID, e.VoucherID, e.VoucherType, e.VoucherNumber,
			e.Date, e.Debit, e.Credit, e.Narration)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepo) GetForUpdate(ctx context.Context, businessID, id string) (Voucher, error) {
	return scanVoucher(r.tx.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE business_id = $1 AND id = $2 FOR UPDATE`, businessID, id))
}

func (r *txRepo) HasDependents(ctx context.Context, businessID, id string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM vouchers
WHERE business_id = $1 AND status = 'posted'
AND linked_vouchers @> jsonb_build_array(jsonb_build_object('voucher_id', $2::text)))`, businessID, id).Scan(&exists)
	return exists, err
}

func (r *txRepo) MarkCancelled(ctx context.Context, v Voucher) error {
	tag, err := r.tx.Exec(ctx, `UPDATE vouchers SET status = $3, cancel_reason = $4, updated_at = NOW()
WHERE business_id = $1 AND id = $2`, v.BusinessID, v.ID, StatusCancelled, v.CancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := r.tx.Exec(ctx, `UPDATE inventory_entries SET cancelled = TRUE WHERE business_id = $1 AND voucher_id = $2`, v.BusinessID, v.ID); err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `UPDATE account_entries SET cancelled = TRUE WHERE business_id = $1 AND voucher_id = $2`, v.BusinessID, v.ID)
	return err
}

func (r *txRepo) Delete(ctx context.Context, businessID, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM vouchers WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
