package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/metrik/metrik/internal/fiscal"
	"github.com/metrik/metrik/internal/platform/cache"
	"github.com/metrik/metrik/internal/shared"
)

// ErrQueryIncomplete indicates a ledger query without business or subject.
var ErrQueryIncomplete = fmt.Errorf("%w: ledger: business and subject are required", shared.ErrBadRequest)

// Query selects one ledger. SubjectID is an item for item ledgers and an
// account or party for party ledgers. An empty FinancialYear means the
// current one; an empty MaterialCentreID spans every centre.
type Query struct {
	BusinessID       string
	SubjectID        string
	FinancialYear    string
	MaterialCentreID string
}

// Period is the resolved date range of a query.
type Period struct {
	FinancialYear string    `json:"financial_year"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
}

// RepositoryPort loads entries of one subject within a period. The opening
// returned carries every movement dated before from.
type RepositoryPort interface {
	ItemEntries(ctx context.Context, q Query, from, to time.Time) (ItemOpening, []ItemEntry, error)
	PartyEntries(ctx context.Context, q Query, from, to time.Time) (float64, []PartyEntry, error)
}

// OpeningBalances supplies the configured opening balance of an account.
type OpeningBalances interface {
	OpeningBalance(ctx context.Context, businessID, accountID string) (float64, error)
}

// Observer receives the cache outcome and row count of every ledger read.
type Observer interface {
	ObserveLedger(kind string, cached bool, rows int)
}

// Service builds folded ledgers, caching results per business.
type Service struct {
	repo     RepositoryPort
	openings OpeningBalances
	cache    *cache.Versioned
	observer Observer
	group    singleflight.Group
	now      func() time.Time
}

// NewService builds Service. cache and observer may be nil.
func NewService(repo RepositoryPort, openings OpeningBalances, c *cache.Versioned, observer Observer) *Service {
	return &Service{repo: repo, openings: openings, cache: c, observer: observer, now: time.Now}
}

// ItemStatement is an item ledger together with its period.
type ItemStatement struct {
	Period
	ItemLedger
}

// PartyStatement is a party ledger together with its period.
type PartyStatement struct {
	Period
	PartyLedger
	ClosingDisplay string `json:"closing_display"`
}

// ItemLedger returns the folded stock ledger described by q.
func (s *Service) ItemLedger(ctx context.Context, q Query) (ItemStatement, error) {
	period, err := s.resolve(q)
	if err != nil {
		return ItemStatement{}, err
	}
	var out ItemStatement
	cached, err := s.fetch(ctx, q, "item", period, &out, func(ctx context.Context) (any, error) {
		opening, entries, err := s.repo.ItemEntries(ctx, q, period.From, period.To)
		if err != nil {
			return nil, err
		}
		return ItemStatement{Period: period, ItemLedger: FoldItems(opening, entries)}, nil
	})
	if err != nil {
		return ItemStatement{}, err
	}
	s.observe("item", cached, len(out.Rows))
	return out, nil
}

// PartyLedger returns the folded ledger of an account or party described by q.
func (s *Service) PartyLedger(ctx context.Context, q Query) (PartyStatement, error) {
	period, err := s.resolve(q)
	if err != nil {
		return PartyStatement{}, err
	}
	var out PartyStatement
	cached, err := s.fetch(ctx, q, "party", period, &out, func(ctx context.Context) (any, error) {
		carried, entries, err := s.repo.PartyEntries(ctx, q, period.From, period.To)
		if err != nil {
			return nil, err
		}
		opening := carried
		if s.openings != nil {
			configured, err := s.openings.OpeningBalance(ctx, q.BusinessID, q.SubjectID)
			if err != nil {
				return nil, err
			}
			opening += configured
		}
		folded := FoldParty(opening, entries)
		return PartyStatement{Period: period, PartyLedger: folded, ClosingDisplay: FormatBalance(folded.Closing)}, nil
	})
	if err != nil {
		return PartyStatement{}, err
	}
	s.observe("party", cached, len(out.Rows))
	return out, nil
}

// Invalidate drops every cached ledger of the business.
func (s *Service) Invalidate(ctx context.Context, businessID string) error {
	return s.cache.Bump(ctx, businessID)
}

func (s *Service) resolve(q Query) (Period, error) {
	if strings.TrimSpace(q.BusinessID) == "" || strings.TrimSpace(q.SubjectID) == "" {
		return Period{}, ErrQueryIncomplete
	}
	start := fiscal.YearStart(s.now())
	if q.FinancialYear != "" {
		parsed, err := fiscal.ParseLabel(q.FinancialYear)
		if err != nil {
			return Period{}, err
		}
		start = parsed
	}
	from, to := fiscal.Range(start, time.UTC)
	return Period{FinancialYear: fiscal.YearLabel(start), From: from, To: to}, nil
}

// fetch serves dest from the cache, building at most once per key across
// concurrent callers. Each caller decodes its own copy of the payload.
func (s *Service) fetch(ctx context.Context, q Query, kind string, period Period, dest any, build func(context.Context) (any, error)) (bool, error) {
	mc := q.MaterialCentreID
	if mc == "" {
		mc = "all"
	}
	key, err := s.cache.BuildKey(ctx, q.BusinessID, kind, q.SubjectID, period.FinancialYear, mc)
	if err != nil {
		return false, err
	}
	// The shared build outlives any single caller's cancellation.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		res := fetched{}
		err := s.cache.FetchJSON(buildCtx, key, &res.raw, func(ctx context.Context) (any, error) {
			res.built = true
			return build(ctx)
		})
		return res, err
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		f := res.Val.(fetched)
		return !f.built, json.Unmarshal(f.raw, dest)
	}
}

type fetched struct {
	raw   json.RawMessage
	built bool
}

func (s *Service) observe(kind string, cached bool, rows int) {
	if s.observer != nil {
		s.observer.ObserveLedger(kind, cached, rows)
	}
}
