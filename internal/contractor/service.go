package contractor

import (
	"context"
	"strings"
)

// Repository loads contractor settings and item units.
type Repository interface {
	GetSettings(ctx context.Context, businessID, partyID string) (Settings, error)
	ItemUnit(ctx context.Context, businessID, itemID string) (string, error)
	SaveSettings(ctx context.Context, businessID string, s Settings) error
}

// Service exposes contractor rate quotes.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// QuoteInput identifies the production output being quoted.
type QuoteInput struct {
	BusinessID     string
	PartyID        string
	OutputItemID   string
	OutputQuantity float64
}

// Quote returns the contractor amount for the output line.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (Result, Settings, error) {
	if in.OutputQuantity <= 0 {
		return Result{}, Settings{}, ErrInvalidQuantity
	}
	settings, err := s.repo.GetSettings(ctx, in.BusinessID, in.PartyID)
	if err != nil {
		return Result{}, Settings{}, err
	}
	if !settings.Enabled {
		return Result{}, Settings{}, ErrNotContractor
	}
	unit, err := s.repo.ItemUnit(ctx, in.BusinessID, in.OutputItemID)
	if err != nil {
		return Result{}, Settings{}, err
	}
	res := Calculate(Input{
		OutputItemID:   in.OutputItemID,
		OutputQuantity: in.OutputQuantity,
		ItemUnit:       unit,
		Settings:       settings,
	})
	return res, settings, nil
}

// UpdateSettings validates and stores a contractor's settings.
func (s *Service) UpdateSettings(ctx context.Context, businessID string, settings Settings) error {
	if strings.TrimSpace(settings.PartyID) == "" {
		return ErrNotContractor
	}
	seen := make(map[string]struct{}, len(settings.ItemRates))
	for _, r := range settings.ItemRates {
		if r.ItemID == "" || r.Rate < 0 || !r.UOM.Valid() {
			return ErrInvalidRate
		}
		if _, dup := seen[r.ItemID]; dup {
			return ErrDuplicateRate
		}
		seen[r.ItemID] = struct{}{}
	}
	return s.repo.SaveSettings(ctx, businessID, settings)
}
