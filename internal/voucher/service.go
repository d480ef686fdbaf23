package voucher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metrik/metrik/internal/contractor"
	"github.com/metrik/metrik/internal/fiscal"
	"github.com/metrik/metrik/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, businessID, id string) (Voucher, error)
	List(ctx context.Context, filter ListFilter) ([]Voucher, int, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	NextSequence(ctx context.Context, businessID string, t Type, financialYear string) (int, error)
	InsertVoucher(ctx context.Context, v Voucher) error
	InsertInventoryEntries(ctx context.Context, entries []InventoryEntry) error
	InsertAccountEntries(ctx context.Context, entries []AccountEntry) error
	GetForUpdate(ctx context.Context, businessID, id string) (Voucher, error)
	HasDependents(ctx context.Context, businessID, id string) (bool, error)
	MarkCancelled(ctx context.Context, v Voucher) error
	Delete(ctx context.Context, businessID, id string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed post requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, businessID, key, module string) error
	Delete(ctx context.Context, businessID, key string) error
}

// ContractorQuoter prices contractor production output.
type ContractorQuoter interface {
	Quote(ctx context.Context, in contractor.QuoteInput) (contractor.Result, contractor.Settings, error)
}

// Invalidator schedules ledger cache invalidation for a business.
type Invalidator interface {
	InvalidateLedgers(ctx context.Context, businessID string) error
}

// ListFilter narrows voucher listings.
type ListFilter struct {
	BusinessID string
	Type       Type
	Status     Status
	From       time.Time
	To         time.Time
	Page       shared.Pagination
}

// PostInput carries a voucher draft to be posted.
type PostInput struct {
	Voucher        Voucher
	ActorID        string
	IdempotencyKey string
}

// PostResult is a posted voucher with the entries generated from it.
type PostResult struct {
	Voucher   Voucher          `json:"voucher"`
	Inventory []InventoryEntry `json:"inventory_entries"`
	Journal   []AccountEntry   `json:"account_entries"`
	Notices   []Notice         `json:"notices,omitempty"`
}

// Service coordinates voucher posting and lifecycle.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	contractors ContractorQuoter
	invalidator Invalidator
	transformer *Transformer
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceDeps groups the optional collaborators of Service.
type ServiceDeps struct {
	Audit       AuditPort
	Idempotency IdempotencyPort
	Contractors ContractorQuoter
	Invalidator Invalidator
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, transformer *Transformer, deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       deps.Audit,
		idempotency: deps.Idempotency,
		contractors: deps.Contractors,
		invalidator: deps.Invalidator,
		transformer: transformer,
		logger:      logger,
		now:         time.Now,
	}
}

// Preview runs every posting step except persistence. The returned voucher
// carries no number.
func (s *Service) Preview(ctx context.Context, input PostInput) (PostResult, error) {
	v, notices, err := s.prepare(ctx, input)
	if err != nil {
		return PostResult{}, err
	}
	return s.transform(v, notices)
}

// Post validates, numbers and persists a voucher together with its
// inventory and account entries.
func (s *Service) Post(ctx context.Context, input PostInput) (PostResult, error) {
	v, notices, err := s.prepare(ctx, input)
	if err != nil {
		return PostResult{}, err
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, v.BusinessID, input.IdempotencyKey, "voucher"); err != nil {
			return PostResult{}, err
		}
		insertedKey = true
	}

	var result PostResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextSequence(ctx, v.BusinessID, v.Type, v.FinancialYear)
		if err != nil {
			return err
		}
		v.Number = FormatNumber(v.Type.Prefix(), v.FinancialYear, seq)
		result, err = s.transform(v, notices)
		if err != nil {
			return err
		}
		if err := tx.InsertVoucher(ctx, result.Voucher); err != nil {
			return err
		}
		if err := tx.InsertInventoryEntries(ctx, result.Inventory); err != nil {
			return err
		}
		return tx.InsertAccountEntries(ctx, result.Journal)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, v.BusinessID, input.IdempotencyKey)
		}
		return PostResult{}, err
	}

	s.record(ctx, input.ActorID, "voucher.post", result.Voucher, map[string]any{
		"voucher_type":   result.Voucher.Type,
		"voucher_number": result.Voucher.Number,
		"grand_total":    result.Voucher.GrandTotal,
	})
	s.invalidate(ctx, result.Voucher)
	return result, nil
}

// Cancel cancels a posted voucher and withdraws its entries from ledgers.
func (s *Service) Cancel(ctx context.Context, businessID, id, reason, actorID string) (Voucher, error) {
	var cancelled Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		cancelled, err = Cancel(v, reason)
		if err != nil {
			return err
		}
		return tx.MarkCancelled(ctx, cancelled)
	})
	if err != nil {
		return Voucher{}, err
	}
	s.record(ctx, actorID, "voucher.cancel", cancelled, map[string]any{"reason": cancelled.CancelReason})
	s.invalidate(ctx, cancelled)
	return cancelled, nil
}

// Delete hard-deletes an open order.
func (s *Service) Delete(ctx context.Context, businessID, id, actorID string) error {
	var deleted Voucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		v, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		linked, err := tx.HasDependents(ctx, businessID, id)
		if err != nil {
			return err
		}
		if err := CanDelete(v, linked); err != nil {
			return err
		}
		deleted = v
		return tx.Delete(ctx, businessID, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "voucher.delete", deleted, map[string]any{"voucher_number": deleted.Number})
	return nil
}

// Get returns one voucher of the business.
func (s *Service) Get(ctx context.Context, businessID, id string) (Voucher, error) {
	return s.repo.Get(ctx, businessID, id)
}

// List returns a page of vouchers and the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Voucher, int, error) {
	if strings.TrimSpace(filter.BusinessID) == "" {
		return nil, 0, invalid(ErrBusinessRequired)
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, &ValidationError{Err: ErrUnknownType, Details: string(filter.Type)}
	}
	filter.Page.Page, filter.Page.PerPage = shared.NormalizePage(filter.Page.Page, filter.Page.PerPage)
	return s.repo.List(ctx, filter)
}

// prepare fills server-owned fields and validates the draft.
func (s *Service) prepare(ctx context.Context, input PostInput) (Voucher, []Notice, error) {
	v := input.Voucher
	v.ID = uuid.NewString()
	v.Number = ""
	v.Status = StatusPosted
	v.CancelReason = ""
	v.ContractorAmount = 0
	v.CreatedBy = input.ActorID
	if v.Date.IsZero() {
		v.Date = s.now()
	}

	var notices []Notice
	if v.Type == TypeProduction && strings.TrimSpace(v.PartyID) != "" && s.contractors != nil {
		n, err := s.applyContractor(ctx, &v)
		if err != nil {
			return Voucher{}, nil, err
		}
		notices = append(notices, n...)
	}

	if err := Validate(v); err != nil {
		return Voucher{}, nil, err
	}

	v.FinancialYear = fiscal.Resolve(v.Date).Label
	v.GrandTotal = GrandTotal(v)
	if v.Type.Category() == CategoryAccount {
		if debit, credit, ok := Balance(v.Lines); !ok {
			notices = append(notices, Notice{
				Code:    NoticeUnbalanced,
				Message: fmt.Sprintf("debits %.2f do not equal credits %.2f", debit, credit),
			})
		}
	}
	return v, notices, nil
}

// applyContractor snapshots the contractor charge for every output line and
// fills material centres from the contractor's defaults.
func (s *Service) applyContractor(ctx context.Context, v *Voucher) ([]Notice, error) {
	var (
		notices  []Notice
		total    float64
		defaults bool
	)
	for _, l := range v.Lines {
		if l.Item == nil || l.Item.Role != RoleOutput || l.Item.ItemID == "" || l.Item.Quantity <= 0 {
			continue
		}
		res, settings, err := s.contractors.Quote(ctx, contractor.QuoteInput{
			BusinessID:     v.BusinessID,
			PartyID:        v.PartyID,
			OutputItemID:   l.Item.ItemID,
			OutputQuantity: l.Item.Quantity,
		})
		if errors.Is(err, contractor.ErrNotContractor) || errors.Is(err, contractor.ErrSettingsNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !defaults {
			if v.MaterialCentreID == "" {
				v.MaterialCentreID = settings.ConsumeMaterialCentreID
			}
			if v.DestinationMaterialCentreID == "" {
				v.DestinationMaterialCentreID = settings.OutputMaterialCentreID
			}
			defaults = true
		}
		if res.Notice == contractor.NoticeNotAssigned {
			notices = append(notices, Notice{
				Code:    NoticeNotAssigned,
				Message: fmt.Sprintf("no contractor rate assigned for item %s", l.Item.ItemID),
			})
			continue
		}
		total += res.Amount
	}
	v.ContractorAmount = roundMoney(total)
	return notices, nil
}

func (s *Service) transform(v Voucher, notices []Notice) (PostResult, error) {
	inv, err := s.transformer.InventoryEntries(v)
	if err != nil {
		return PostResult{}, err
	}
	journal, err := s.transformer.JournalEntries(v)
	if err != nil {
		return PostResult{}, err
	}
	return PostResult{Voucher: v, Inventory: inv, Journal: journal, Notices: notices}, nil
}

// record and invalidate run after commit. Their failures are logged and never
// reported to the caller, whose voucher is already persisted.
func (s *Service) record(ctx context.Context, actorID, action string, v Voucher, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		BusinessID: v.BusinessID,
		ActorID:    actorID,
		Action:     action,
		Entity:     "voucher",
		EntityID:   v.ID,
		Meta:       meta,
		At:         s.now(),
	})
	if err != nil {
		s.logger.Error("record voucher audit", slog.String("action", action), slog.String("voucher_id", v.ID), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, v Voucher) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateLedgers(ctx, v.BusinessID); err != nil {
		s.logger.Error("schedule ledger invalidation", slog.String("business_id", v.BusinessID), slog.String("voucher_id", v.ID), slog.Any("error", err))
	}
}
