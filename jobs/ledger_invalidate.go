package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/metrik/metrik/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// CacheBumper invalidates every cached read model of one business.
type CacheBumper interface {
	Invalidate(ctx context.Context, businessID string) error
}

// LedgerInvalidateJob bumps the ledger and analytics caches.
type LedgerInvalidateJob struct {
	Caches  []CacheBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerInvalidateJob wires the caches bumped by the handler.
func NewLedgerInvalidateJob(logger *slog.Logger, metrics *jobmetrics.Metrics, caches ...CacheBumper) *LedgerInvalidateJob {
	return &LedgerInvalidateJob{Caches: caches, Logger: logger, Metrics: metrics}
}

// Handle processes ledger:invalidate tasks.
func (j *LedgerInvalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger invalidate: handler not configured")
	}
	var payload LedgerInvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ledger invalidate: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.BusinessID) == "" {
		return fmt.Errorf("ledger invalidate: business_id missing: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskLedgerInvalidate)
	err := j.InvalidateLedgers(ctx, payload.BusinessID)
	if err != nil {
		j.logger().Error("invalidate caches", slog.String("business_id", payload.BusinessID), slog.Any("error", err))
	}
	return tracker.End(err)
}

// InvalidateLedgers bumps every cache synchronously. It backs the voucher
// service directly when no queue is configured.
func (j *LedgerInvalidateJob) InvalidateLedgers(ctx context.Context, businessID string) error {
	var errs []error
	for _, c := range j.Caches {
		if c == nil {
			continue
		}
		if err := c.Invalidate(ctx, businessID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (j *LedgerInvalidateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerInvalidate))
	}
	return slog.Default().With(slog.String("job", TaskLedgerInvalidate))
}

func (j *LedgerInvalidateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
