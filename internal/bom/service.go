package bom

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/metrik/metrik/internal/shared"
	"github.com/metrik/metrik/internal/voucher"
)

// RepositoryPort abstracts BOM persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, businessID, id string) (BOM, error)
	ListByOutput(ctx context.Context, businessID, outputItemID string) ([]BOM, error)
	Active(ctx context.Context, businessID, outputItemID string) (BOM, error)
}

// TxRepository is the transactional subset used when writing BOMs.
type TxRepository interface {
	GetForUpdate(ctx context.Context, businessID, id string) (BOM, error)
	LatestVersion(ctx context.Context, businessID, outputItemID string) (int, error)
	Insert(ctx context.Context, b BOM) error
	UpdateInputs(ctx context.Context, b BOM) error
	ArchiveActive(ctx context.Context, businessID, outputItemID string) error
	SetStatus(ctx context.Context, businessID, id string, status Status) error
}

// AuditPort records BOM changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates BOM versioning and expansion.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Create stores b as version one, or the next version when the output item
// already has BOMs, in draft status.
func (s *Service) Create(ctx context.Context, b BOM, actorID string) (BOM, error) {
	if err := b.Validate(); err != nil {
		return BOM{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		latest, err := tx.LatestVersion(ctx, b.BusinessID, b.OutputItemID)
		if err != nil {
			return err
		}
		b = NewVersion(b, latest)
		b.ID = uuid.NewString()
		b.CreatedAt = s.now()
		return tx.Insert(ctx, b)
	})
	if err != nil {
		return BOM{}, err
	}
	s.record(ctx, b, actorID, "bom.create")
	return b, nil
}

// UpdateDraft replaces the inputs of a draft BOM.
func (s *Service) UpdateDraft(ctx context.Context, businessID, id string, inputs []Input, actorID string) (BOM, error) {
	var out BOM
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrNotEditable
		}
		current.Inputs = inputs
		if err := current.Validate(); err != nil {
			return err
		}
		out = current
		return tx.UpdateInputs(ctx, current)
	})
	if err != nil {
		return BOM{}, err
	}
	s.record(ctx, out, actorID, "bom.update")
	return out, nil
}

// NewVersionFrom creates the next draft version copying the inputs of id.
func (s *Service) NewVersionFrom(ctx context.Context, businessID, id, actorID string) (BOM, error) {
	var out BOM
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		prev, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		latest, err := tx.LatestVersion(ctx, businessID, prev.OutputItemID)
		if err != nil {
			return err
		}
		out = NewVersion(prev, latest)
		out.ID = uuid.NewString()
		out.CreatedAt = s.now()
		return tx.Insert(ctx, out)
	})
	if err != nil {
		return BOM{}, err
	}
	s.record(ctx, out, actorID, "bom.new_version")
	return out, nil
}

// Activate makes id the active BOM of its output item. Any previously
// active version is archived in the same transaction.
func (s *Service) Activate(ctx context.Context, businessID, id, actorID string) (BOM, error) {
	var out BOM
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		if b.Status == StatusActive {
			out = b
			return nil
		}
		if err := tx.ArchiveActive(ctx, businessID, b.OutputItemID); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, businessID, id, StatusActive); err != nil {
			return err
		}
		b.Status = StatusActive
		out = b
		return nil
	})
	if err != nil {
		return BOM{}, err
	}
	s.record(ctx, out, actorID, "bom.activate")
	return out, nil
}

// Archive retires id without activating another version.
func (s *Service) Archive(ctx context.Context, businessID, id, actorID string) (BOM, error) {
	var out BOM
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetForUpdate(ctx, businessID, id)
		if err != nil {
			return err
		}
		b.Status = StatusArchived
		out = b
		return tx.SetStatus(ctx, businessID, id, StatusArchived)
	})
	if err != nil {
		return BOM{}, err
	}
	s.record(ctx, out, actorID, "bom.archive")
	return out, nil
}

// Get returns one BOM.
func (s *Service) Get(ctx context.Context, businessID, id string) (BOM, error) {
	return s.repo.Get(ctx, businessID, id)
}

// Versions lists every version of an output item's BOM, newest first.
func (s *Service) Versions(ctx context.Context, businessID, outputItemID string) ([]BOM, error) {
	return s.repo.ListByOutput(ctx, businessID, outputItemID)
}

// Expansion is the production input default derived from the active BOM.
type Expansion struct {
	BOMID        string         `json:"bom_id"`
	Version      int            `json:"version"`
	Requirements []Requirement  `json:"requirements"`
	Lines        []voucher.Line `json:"line_items"`
}

// ExpandActive scales the active BOM of outputItemID to requestedQty.
func (s *Service) ExpandActive(ctx context.Context, businessID, outputItemID string, requestedQty float64) (Expansion, error) {
	b, err := s.repo.Active(ctx, businessID, outputItemID)
	if err != nil {
		return Expansion{}, err
	}
	reqs, err := Expand(b, requestedQty)
	if err != nil {
		return Expansion{}, err
	}
	return Expansion{BOMID: b.ID, Version: b.Version, Requirements: reqs, Lines: ToProductionLines(reqs)}, nil
}

func (s *Service) record(ctx context.Context, b BOM, actorID, action string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		BusinessID: b.BusinessID,
		ActorID:    actorID,
		Action:     action,
		Entity:     "bom",
		EntityID:   b.ID,
		Meta:       map[string]any{"output_item_id": b.OutputItemID, "version": b.Version, "status": string(b.Status)},
		At:         s.now(),
	})
}
