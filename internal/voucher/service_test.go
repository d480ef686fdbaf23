package voucher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/metrik/metrik/internal/contractor"
	"github.com/metrik/metrik/internal/shared"
)

type memoryRepo struct {
	vouchers  map[string]Voucher
	seq       map[string]int
	inventory []InventoryEntry
	journal   []AccountEntry
	failWith  error
}

type memoryTx struct {
	repo      *memoryRepo
	vouchers  map[string]Voucher
	seq       map[string]int
	inventory []InventoryEntry
	journal   []AccountEntry
	deleted   []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{vouchers: make(map[string]Voucher), seq: make(map[string]int)}
}

// WithTx stages writes and applies them only when fn succeeds.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, vouchers: make(map[string]Voucher), seq: make(map[string]int)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, v := range tx.seq {
		r.seq[k] = v
	}
	for id, v := range tx.vouchers {
		r.vouchers[id] = v
	}
	for _, id := range tx.deleted {
		delete(r.vouchers, id)
	}
	r.inventory = append(r.inventory, tx.inventory...)
	r.journal = append(r.journal, tx.journal...)
	return nil
}

func (r *memoryRepo) Get(_ context.Context, businessID, id string) (Voucher, error) {
	v, ok := r.vouchers[id]
	if !ok || v.BusinessID != businessID {
		return Voucher{}, ErrNotFound
	}
	return v, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Voucher, int, error) {
	var out []Voucher
	for _, v := range r.vouchers {
		if v.BusinessID == filter.BusinessID && (filter.Type == "" || v.Type == filter.Type) {
			out = append(out, v)
		}
	}
	return out, len(out), nil
}

func (tx *memoryTx) NextSequence(_ context.Context, businessID string, t Type, fy string) (int, error) {
	key := fmt.Sprintf("%s:%s:%s", businessID, t, fy)
	next := tx.repo.seq[key] + 1
	tx.seq[key] = next
	return next, nil
}

func (tx *memoryTx) InsertVoucher(_ context.Context, v Voucher) error {
	if tx.repo.failWith != nil {
		return tx.repo.failWith
	}
	tx.vouchers[v.ID] = v
	return nil
}

func (tx *memoryTx) InsertInventoryEntries(_ context.Context, entries []InventoryEntry) error {
	tx.inventory = append(tx.inventory, entries...)
	return nil
}

func (tx *memoryTx) InsertAccountEntries(_ context.Context, entries []AccountEntry) error {
	tx.journal = append(tx.journal, entries...)
	return nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, businessID, id string) (Voucher, error) {
	return tx.repo.Get(ctx, businessID, id)
}

func (tx *memoryTx) HasDependents(_ context.Context, businessID, id string) (bool, error) {
	for _, v := range tx.repo.vouchers {
		if v.BusinessID != businessID || v.Status != StatusPosted {
			continue
		}
		for _, l := range v.Links {
			if l.VoucherID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (tx *memoryTx) MarkCancelled(_ context.Context, v Voucher) error {
	tx.vouchers[v.ID] = v
	return nil
}

func (tx *memoryTx) Delete(_ context.Context, _ string, id string) error {
	tx.deleted = append(tx.deleted, id)
	return nil
}

type fakeAudit struct {
	logs []shared.AuditLog
	err  error
}

func (a *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

type fakeInvalidator struct {
	businesses []string
	err        error
}

func (f *fakeInvalidator) InvalidateLedgers(_ context.Context, businessID string) error {
	f.businesses = append(f.businesses, businessID)
	return f.err
}

type fakeIdempotency struct {
	keys    map[string]bool
	deleted []string
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, businessID, key, _ string) error {
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
	k := businessID + ":" + key
	if f.keys[k] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[k] = true
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, businessID, key string) error {
	delete(f.keys, businessID+":"+key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeQuoter struct {
	settings contractor.Settings
	results  map[string]contractor.Result
	err      error
}

func (f *fakeQuoter) Quote(_ context.Context, in contractor.QuoteInput) (contractor.Result, contractor.Settings, error) {
	if f.err != nil {
		return contractor.Result{}, contractor.Settings{}, f.err
	}
	res, ok := f.results[in.OutputItemID]
	if !ok {
		return contractor.Result{Notice: contractor.NoticeNotAssigned}, f.settings, nil
	}
	return res, f.settings, nil
}

type serviceFixture struct {
	repo        *memoryRepo
	audit       *fakeAudit
	invalidator *fakeInvalidator
	idem        *fakeIdempotency
	quoter      *fakeQuoter
	svc         *Service
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		repo:        newMemoryRepo(),
		audit:       &fakeAudit{},
		invalidator: &fakeInvalidator{},
		idem:        &fakeIdempotency{},
		quoter:      &fakeQuoter{},
	}
	f.svc = NewService(f.repo, NewTransformer(testAccounts), ServiceDeps{
		Audit:       f.audit,
		Idempotency: f.idem,
		Contractors: f.quoter,
		Invalidator: f.invalidator,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func draftAt(t Type, date time.Time, lines ...ItemLine) Voucher {
	v := itemVoucher(t, lines...)
	v.ID = ""
	v.Number = ""
	v.Date = date
	return v
}

func TestPostNumbersPerTypeAndYear(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	march := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	first, err := f.svc.Post(ctx, PostInput{Voucher: draftAt(TypeSalesInvoice, march, ItemLine{ItemID: "a", Quantity: 1, Rate: 10}), ActorID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, "SI/2024-25/0001", first.Voucher.Number)
	require.Equal(t, "2024-25", first.Voucher.FinancialYear)
	require.Equal(t, StatusPosted, first.Voucher.Status)
	require.NotEmpty(t, first.Voucher.ID)

	second, err := f.svc.Post(ctx, PostInput{Voucher: draftAt(TypeSalesInvoice, march, ItemLine{ItemID: "a", Quantity: 1, Rate: 10})})
	require.NoError(t, err)
	require.Equal(t, "SI/2024-25/0002", second.Voucher.Number)

	nextYear, err := f.svc.Post(ctx, PostInput{Voucher: draftAt(TypeSalesInvoice, april, ItemLine{ItemID: "a", Quantity: 1, Rate: 10})})
	require.NoError(t, err)
	require.Equal(t, "SI/2025-26/0001", nextYear.Voucher.Number)

	grn, err := f.svc.Post(ctx, PostInput{Voucher: draftAt(TypeGRN, april, ItemLine{ItemID: "a", Quantity: 1})})
	require.NoError(t, err)
	require.Equal(t, "GRN/2025-26/0001", grn.Voucher.Number)
}

func TestPostPersistsEntriesAndSideEffects(t *testing.T) {
	f := newFixture()
	draft := draftAt(TypeSalesInvoice, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC),
		ItemLine{ItemID: "a", Quantity: 2, Rate: 100, GSTRate: 18})

	res, err := f.svc.Post(context.Background(), PostInput{Voucher: draft, ActorID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, 236.0, res.Voucher.GrandTotal)
	require.Len(t, res.Inventory, 1)
	require.Len(t, res.Journal, 3)
	require.Len(t, f.repo.inventory, 1)
	require.Len(t, f.repo.journal, 3)
	require.Equal(t, res.Voucher.Number, f.repo.journal[0].VoucherNumber)
	require.Contains(t, f.repo.vouchers, res.Voucher.ID)

	require.Len(t, f.audit.logs, 1)
	require.Equal(t, "voucher.post", f.audit.logs[0].Action)
	require.Equal(t, "user-1", f.audit.logs[0].ActorID)
	require.Equal(t, []string{"biz-1"}, f.invalidator.businesses)
}

func TestPostRejectsInvalidDraft(t *testing.T) {
	f := newFixture()
	draft := draftAt(TypeSalesInvoice, time.Now(), ItemLine{ItemID: "a", Quantity: 0})
	_, err := f.svc.Post(context.Background(), PostInput{Voucher: draft})
	require.ErrorIs(t, err, ErrZeroQuantity)
	require.ErrorIs(t, err, shared.ErrBadRequest)
	require.Empty(t, f.repo.vouchers)
	require.Empty(t, f.audit.logs)
	require.Empty(t, f.invalidator.businesses)
}

func TestPostReleasesIdempotencyKeyOnFailure(t *testing.T) {
	f := newFixture()
	f.repo.failWith = ErrDuplicateNumber
	draft := draftAt(TypeGRN, time.Now(), ItemLine{ItemID: "a", Quantity: 1})

	_, err := f.svc.Post(context.Background(), PostInput{Voucher: draft, IdempotencyKey: "k-1"})
	require.ErrorIs(t, err, ErrDuplicateNumber)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, []string{"k-1"}, f.idem.deleted)
	require.Empty(t, f.repo.seq, "sequence bump rolled back with the transaction")

	f.repo.failWith = nil
	_, err = f.svc.Post(context.Background(), PostInput{Voucher: draft, IdempotencyKey: "k-1"})
	require.NoError(t, err)
	_, err = f.svc.Post(context.Background(), PostInput{Voucher: draft, IdempotencyKey: "k-1"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestPostSucceedsWhenSideEffectsFail(t *testing.T) {
	f := newFixture()
	f.invalidator.err = errors.New("redis: connection refused")
	f.audit.err = errors.New("audit insert failed")
	ctx := context.Background()
	draft := draftAt(TypeGRN, time.Now(), ItemLine{ItemID: "a", Quantity: 1})

	res, err := f.svc.Post(ctx, PostInput{Voucher: draft, IdempotencyKey: "k-9"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Voucher.Number)
	require.Len(t, f.repo.vouchers, 1)
	require.Len(t, f.repo.inventory, 1)
	require.Empty(t, f.idem.deleted, "committed post keeps its idempotency key")
	require.Equal(t, []string{"biz-1"}, f.invalidator.businesses)

	_, err = f.svc.Post(ctx, PostInput{Voucher: draft, IdempotencyKey: "k-9"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, f.repo.vouchers, 1)

	cancelled, err := f.svc.Cancel(ctx, "biz-1", res.Voucher.ID, "wrong item", "user-1")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Len(t, f.invalidator.businesses, 2)
}

func TestPostUnbalancedJournalWarns(t *testing.T) {
	f := newFixture()
	v := Voucher{
		BusinessID: "biz-1",
		Type:       TypeJournal,
		Date:       time.Date(2024, time.August, 1, 0, 0, 0, 0, time.UTC),
		Lines: []Line{
			NewAccountLine(AccountLine{AccountID: "a", Debit: 100}),
			NewAccountLine(AccountLine{AccountID: "b", Credit: 90}),
		},
	}
	res, err := f.svc.Post(context.Background(), PostInput{Voucher: v})
	require.NoError(t, err)
	require.Len(t, res.Notices, 1)
	require.Equal(t, NoticeUnbalanced, res.Notices[0].Code)
	require.Equal(t, "JV/2024-25/0001", res.Voucher.Number)
	require.Equal(t, 100.0, res.Voucher.GrandTotal)
	require.Len(t, res.Journal, 2)
}

func TestPostContractorProduction(t *testing.T) {
	f := newFixture()
	f.quoter.settings = contractor.Settings{PartyID: "party-1", Enabled: true, ConsumeMaterialCentreID: "mc-raw", OutputMaterialCentreID: "mc-fg"}
	f.quoter.results = map[string]contractor.Result{"shirt": {Amount: 240}}

	draft := draftAt(TypeProduction, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC),
		ItemLine{ItemID: "fabric", Quantity: 10, Role: RoleInput},
		ItemLine{ItemID: "shirt", Quantity: 24, Role: RoleOutput},
		ItemLine{ItemID: "collar", Quantity: 24, Role: RoleOutput},
	)
	draft.MaterialCentreID = ""
	draft.ContractorAmount = 9999

	res, err := f.svc.Post(context.Background(), PostInput{Voucher: draft})
	require.NoError(t, err)
	require.Equal(t, 240.0, res.Voucher.ContractorAmount)
	require.Equal(t, "mc-raw", res.Voucher.MaterialCentreID)
	require.Equal(t, "mc-fg", res.Voucher.DestinationMaterialCentreID)
	require.Len(t, res.Notices, 1)
	require.Equal(t, NoticeNotAssigned, res.Notices[0].Code)
	require.Len(t, res.Journal, 2)
	require.Equal(t, "acc-job-work", res.Journal[0].AccountID)
	require.Equal(t, "mc-fg", res.Inventory[1].MaterialCentreID)
}

func TestPostIgnoresClientContractorAmount(t *testing.T) {
	f := newFixture()
	draft := draftAt(TypeProduction, time.Now(),
		ItemLine{ItemID: "fabric", Quantity: 2, Role: RoleInput},
		ItemLine{ItemID: "shirt", Quantity: 1, Role: RoleOutput})
	draft.ContractorAmount = 500

	res, err := f.svc.Post(context.Background(), PostInput{Voucher: draft})
	require.NoError(t, err)
	require.Zero(t, res.Voucher.ContractorAmount)
}

func TestPostProductionWithNonContractorParty(t *testing.T) {
	f := newFixture()
	f.quoter.err = contractor.ErrNotContractor
	draft := draftAt(TypeProduction, time.Now(),
		ItemLine{ItemID: "fabric", Quantity: 10, Role: RoleInput},
		ItemLine{ItemID: "shirt", Quantity: 24, Role: RoleOutput},
	)
	res, err := f.svc.Post(context.Background(), PostInput{Voucher: draft})
	require.NoError(t, err)
	require.Zero(t, res.Voucher.ContractorAmount)
	require.Empty(t, res.Journal)
}

func TestPostPropagatesQuoteFailure(t *testing.T) {
	f := newFixture()
	f.quoter.err = errors.New("db down")
	draft := draftAt(TypeProduction, time.Now(), ItemLine{ItemID: "shirt", Quantity: 24, Role: RoleOutput})
	_, err := f.svc.Post(context.Background(), PostInput{Voucher: draft})
	require.EqualError(t, err, "db down")
}

func TestPreviewDoesNotPersist(t *testing.T) {
	f := newFixture()
	draft := draftAt(TypeSalesInvoice, time.Now(), ItemLine{ItemID: "a", Quantity: 1, Rate: 5})
	res, err := f.svc.Preview(context.Background(), PostInput{Voucher: draft})
	require.NoError(t, err)
	require.Empty(t, res.Voucher.Number)
	require.Len(t, res.Journal, 2)
	require.Empty(t, f.repo.vouchers)
	require.Empty(t, f.audit.logs)
}

func TestCancelLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.svc.Post(ctx, PostInput{Voucher: draftAt(TypeGRN, time.Now(), ItemLine{ItemID: "a", Quantity: 1})})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "biz-1", res.Voucher.ID, "", "user-1")
	require.ErrorIs(t, err, ErrCancelReasonRequired)

	cancelled, err := f.svc.Cancel(ctx, "biz-1", res.Voucher.ID, "entered twice", "user-1")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, StatusCancelled, f.repo.vouchers[res.Voucher.ID].Status)
	require.Equal(t, "voucher.cancel", f.audit.logs[len(f.audit.logs)-1].Action)
	require.Len(t, f.invalidator.businesses, 2)

	_, err = f.svc.Cancel(ctx, "biz-1", res.Voucher.ID, "again", "user-1")
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = f.svc.Cancel(ctx, "other-biz", res.Voucher.ID, "x", "user-1")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteOnlyOpenOrders(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	date := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)

	order, err := f.svc.Post(ctx, PostInput{Voucher: draftAt(TypeSalesOrder, date, ItemLine{ItemID: "a", Quantity: 1})})
	require.NoError(t, err)
	invoiceDraft := draftAt(TypeSalesInvoice, date, ItemLine{ItemID: "a", Quantity: 1})
	invoiceDraft.Links = []Link{{VoucherID: order.Voucher.ID, Relationship: "against_order"}}
	invoice, err := f.svc.Post(ctx, PostInput{Voucher: invoiceDraft})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.Delete(ctx, "biz-1", order.Voucher.ID, "user-1"), ErrNotDeletable)
	require.ErrorIs(t, f.svc.Delete(ctx, "biz-1", invoice.Voucher.ID, "user-1"), ErrNotDeletable)

	open, err := f.svc.Post(ctx, PostInput{Voucher: draftAt(TypePurchaseOrder, date, ItemLine{ItemID: "a", Quantity: 1})})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, "biz-1", open.Voucher.ID, "user-1"))
	require.NotContains(t, f.repo.vouchers, open.Voucher.ID)
	require.Equal(t, "voucher.delete", f.audit.logs[len(f.audit.logs)-1].Action)
}

func TestListValidatesFilter(t *testing.T) {
	f := newFixture()
	_, _, err := f.svc.List(context.Background(), ListFilter{})
	require.ErrorIs(t, err, ErrBusinessRequired)
	_, _, err = f.svc.List(context.Background(), ListFilter{BusinessID: "biz-1", Type: "bogus"})
	require.ErrorIs(t, err, ErrUnknownType)
}
