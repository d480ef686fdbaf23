// Package analytics aggregates posted sales into fiscal-year graphs.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/metrik/metrik/internal/fiscal"
	"github.com/metrik/metrik/internal/platform/cache"
	"github.com/metrik/metrik/internal/shared"
)

// Granularity selects the bucket size of a sales graph.
type Granularity string

const (
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
)

// ErrInvalidGranularity indicates a granularity other than monthly or quarterly.
var ErrInvalidGranularity = fmt.Errorf("%w: analytics: granularity must be monthly or quarterly", shared.ErrBadRequest)

// Repository loads dated sales amounts. Returns are negative amounts.
type Repository interface {
	SalesPoints(ctx context.Context, businessID string, from, to time.Time) ([]fiscal.Point, error)
}

// SalesFilter selects one sales graph.
type SalesFilter struct {
	BusinessID    string
	FinancialYear string
	Granularity   Granularity
}

// SalesGraph compares a financial year's sales with the year before.
type SalesGraph struct {
	FinancialYear string      `json:"financial_year"`
	PreviousYear  string      `json:"previous_year"`
	Granularity   Granularity `json:"granularity"`
	Labels        []string    `json:"labels"`
	Current       []float64   `json:"current"`
	Previous      []float64   `json:"previous"`
	Total         float64     `json:"total"`
	PreviousTotal float64     `json:"previous_total"`
}

// Service coordinates sales graph queries with the cache layer.
type Service struct {
	repo  Repository
	cache *cache.Versioned
	now   func() time.Time
}

// NewService wires a Repository with a cache helper. c may be nil.
func NewService(repo Repository, c *cache.Versioned) *Service {
	return &Service{repo: repo, cache: c, now: time.Now}
}

// SalesGraph returns bucketed sales of the requested financial year, loading
// the previous year concurrently for comparison.
func (s *Service) SalesGraph(ctx context.Context, filter SalesFilter) (SalesGraph, error) {
	if strings.TrimSpace(filter.BusinessID) == "" {
		return SalesGraph{}, fmt.Errorf("%w: analytics: business is required", shared.ErrBadRequest)
	}
	if filter.Granularity == "" {
		filter.Granularity = Monthly
	}
	if filter.Granularity != Monthly && filter.Granularity != Quarterly {
		return SalesGraph{}, ErrInvalidGranularity
	}
	start := fiscal.YearStart(s.now())
	if filter.FinancialYear != "" {
		parsed, err := fiscal.ParseLabel(filter.FinancialYear)
		if err != nil {
			return SalesGraph{}, err
		}
		start = parsed
	}

	key, err := s.cache.BuildKey(ctx, filter.BusinessID, "sales", fiscal.YearLabel(start), string(filter.Granularity))
	if err != nil {
		return SalesGraph{}, err
	}
	var graph SalesGraph
	err = s.cache.FetchJSON(ctx, key, &graph, func(ctx context.Context) (any, error) {
		return s.build(ctx, filter.BusinessID, start, filter.Granularity)
	})
	if err != nil {
		return SalesGraph{}, err
	}
	return graph, nil
}

// Invalidate drops every cached graph of the business.
func (s *Service) Invalidate(ctx context.Context, businessID string) error {
	return s.cache.Bump(ctx, businessID)
}

func (s *Service) build(ctx context.Context, businessID string, start int, granularity Granularity) (SalesGraph, error) {
	var current, previous [12]float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.monthly(gctx, businessID, start)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.monthly(gctx, businessID, start-1)
		return err
	})
	if err := g.Wait(); err != nil {
		return SalesGraph{}, err
	}

	graph := SalesGraph{
		FinancialYear: fiscal.YearLabel(start),
		PreviousYear:  fiscal.YearLabel(start - 1),
		Granularity:   granularity,
	}
	if granularity == Quarterly {
		q, pq := fiscal.BucketQuarterly(current), fiscal.BucketQuarterly(previous)
		graph.Labels = append([]string(nil), fiscal.QuarterLabels[:]...)
		graph.Current = rounded(q[:])
		graph.Previous = rounded(pq[:])
	} else {
		graph.Labels = append([]string(nil), fiscal.MonthLabels[:]...)
		graph.Current = rounded(current[:])
		graph.Previous = rounded(previous[:])
	}
	graph.Total = sum(graph.Current)
	graph.PreviousTotal = sum(graph.Previous)
	return graph, nil
}

func (s *Service) monthly(ctx context.Context, businessID string, start int) ([12]float64, error) {
	from, to := fiscal.Range(start, time.UTC)
	points, err := s.repo.SalesPoints(ctx, businessID, from, to)
	if err != nil {
		return [12]float64{}, err
	}
	return fiscal.BucketMonthly(start, points), nil
}

func rounded(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i], _ = decimal.NewFromFloat(v).Round(2).Float64()
	}
	return out
}

func sum(values []float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Round(2).Float64()
	return f
}
