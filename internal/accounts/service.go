package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metrik/metrik/internal/shared"
)

// AuditPort records account changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached ledgers after an opening balance changes.
type Invalidator interface {
	InvalidateLedgers(ctx context.Context, businessID string) error
}

// Service manages the chart of accounts.
type Service struct {
	repo        Repository
	audit       AuditPort
	invalidator Invalidator
	now         func() time.Time
}

// NewService builds Service. audit and invalidator may be nil.
func NewService(repo Repository, audit AuditPort, invalidator Invalidator) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator, now: time.Now}
}

// List returns the business's accounts ordered by code.
func (s *Service) List(ctx context.Context, businessID string) ([]Account, error) {
	return s.repo.List(ctx, businessID)
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, businessID, id string) (Account, error) {
	return s.repo.Get(ctx, businessID, id)
}

// Create adds a user-defined account.
func (s *Service) Create(ctx context.Context, a Account, actorID string) (Account, error) {
	a = normalize(a)
	if err := a.Validate(); err != nil {
		return Account{}, err
	}
	a.ID = uuid.NewString()
	a.IsSystem = false
	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	if err := s.repo.Insert(ctx, a); err != nil {
		return Account{}, err
	}
	s.record(ctx, a, actorID, "account.create")
	return a, nil
}

// Update replaces the editable fields of a. System accounts are refused.
func (s *Service) Update(ctx context.Context, a Account, actorID string) (Account, error) {
	current, err := s.repo.Get(ctx, a.BusinessID, a.ID)
	if err != nil {
		return Account{}, err
	}
	if current.IsSystem {
		return Account{}, ErrSystemAccount
	}
	a = normalize(a)
	if err := a.Validate(); err != nil {
		return Account{}, err
	}
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, a); err != nil {
		return Account{}, err
	}
	s.record(ctx, a, actorID, "account.update")
	if current.Opening != a.Opening {
		s.invalidate(ctx, a.BusinessID)
	}
	return a, nil
}

// Delete removes an account that is neither a system account nor referenced
// by ledger entries.
func (s *Service) Delete(ctx context.Context, businessID, id, actorID string) error {
	current, err := s.repo.Get(ctx, businessID, id)
	if err != nil {
		return err
	}
	if current.IsSystem {
		return ErrSystemAccount
	}
	used, err := s.repo.HasEntries(ctx, businessID, id)
	if err != nil {
		return err
	}
	if used {
		return ErrInUse
	}
	if err := s.repo.Delete(ctx, businessID, id); err != nil {
		return err
	}
	s.record(ctx, current, actorID, "account.delete")
	return nil
}

// OpeningBalance returns the configured net opening of accountID, positive
// for debit.
func (s *Service) OpeningBalance(ctx context.Context, businessID, accountID string) (float64, error) {
	a, err := s.repo.Get(ctx, businessID, accountID)
	if err != nil {
		return 0, err
	}
	return a.Opening.Net(), nil
}

func normalize(a Account) Account {
	a.Name = strings.TrimSpace(a.Name)
	a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
	a.Group = strings.TrimSpace(a.Group)
	return a
}

func (s *Service) invalidate(ctx context.Context, businessID string) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.InvalidateLedgers(ctx, businessID)
}

func (s *Service) record(ctx context.Context, a Account, actorID, action string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: a.BusinessID,
		ActorID:    actorID,
		Action:     action,
		Entity:     "account",
		EntityID:   a.ID,
		Meta:       map[string]any{"code": a.Code},
		At:         s.now(),
	})
}
