package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metrik/metrik/internal/analytics"
	"github.com/metrik/metrik/internal/fiscal"
	jobmetrics "github.com/metrik/metrik/internal/jobs"
)

// SalesGrapher builds and caches sales graphs.
type SalesGrapher interface {
	SalesGraph(ctx context.Context, filter analytics.SalesFilter) (analytics.SalesGraph, error)
}

// BusinessLister returns the businesses with posted sales in a financial year.
type BusinessLister func(ctx context.Context, financialYear string) ([]string, error)

// SalesGraphWarmupJob pre-populates the sales graph cache.
type SalesGraphWarmupJob struct {
	Analytics  SalesGrapher
	Businesses BusinessLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	// Locker keeps concurrent schedulers from warming the same year twice.
	// Nil disables locking.
	Locker     *redislock.Client
	clock      func() time.Time
}

const warmupLockTTL = 10 * time.Minute

// NewSalesGraphWarmupJob wires dependencies for the warmup handler.
func NewSalesGraphWarmupJob(grapher SalesGrapher, businesses BusinessLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *SalesGraphWarmupJob {
	return &SalesGraphWarmupJob{
		Analytics:  grapher,
		Businesses: businesses,
		Logger:     logger,
		Metrics:    metrics,
		clock:      time.Now,
	}
}

// Handle processes sales graph warmup tasks.
func (j *SalesGraphWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil || j.Businesses == nil {
		return errors.New("sales graph warmup: handler not configured")
	}
	var payload SalesGraphWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("sales graph warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	fy := fiscal.Resolve(j.clock()).Label
	if payload.FinancialYear != "" {
		if _, err := fiscal.ParseLabel(payload.FinancialYear); err != nil {
			return fmt.Errorf("sales graph warmup: %v: %w", err, asynq.SkipRetry)
		}
		fy = payload.FinancialYear
	}

	logger := j.logger().With(slog.String("financial_year", fy))
	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, "metrik:lock:"+TaskSalesGraphWarmup+":"+fy, warmupLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("sales graph warmup already running")
			return nil
		}
		if err != nil {
			return fmt.Errorf("sales graph warmup: obtain lock: %w", err)
		}
		defer func() {
			_ = lock.Release(context.WithoutCancel(ctx))
		}()
	}

	tracker := j.metrics().Track(TaskSalesGraphWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	businesses, err := j.Businesses(ctx, fy)
	if err != nil {
		resultErr = err
		logger.Error("load warmup businesses", slog.Any("error", err))
		return resultErr
	}

	for _, businessID := range businesses {
		scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		for _, g := range []analytics.Granularity{analytics.Monthly, analytics.Quarterly} {
			_, err := j.Analytics.SalesGraph(scopeCtx, analytics.SalesFilter{BusinessID: businessID, FinancialYear: fy, Granularity: g})
			if err != nil {
				cancel()
				resultErr = err
				logger.Error("warm sales graph", slog.String("business_id", businessID), slog.Any("error", err))
				return resultErr
			}
		}
		cancel()
	}
	j.metrics().AddScopes(TaskSalesGraphWarmup, len(businesses))
	logger.Info("completed sales graph warmup", slog.Int("businesses", len(businesses)), slog.Duration("duration", time.Since(start)))
	return resultErr
}

// PostedSalesBusinesses lists businesses with posted sales vouchers in fy.
func PostedSalesBusinesses(pool *pgxpool.Pool) BusinessLister {
	return func(ctx context.Context, financialYear string) ([]string, error) {
		rows, err := pool.Query(ctx, `SELECT DISTINCT business_id::text FROM vouchers
WHERE status = 'posted' AND voucher_type IN ('sales_invoice', 'sales_return') AND financial_year = $1
ORDER BY 1`, financialYear)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, pgx.RowTo[string])
	}
}

func (j *SalesGraphWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSalesGraphWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSalesGraphWarmup))
}

func (j *SalesGraphWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
