package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerInvalidate drops cached ledgers and sales graphs of one business.
	TaskLedgerInvalidate = "ledger:invalidate"
	// TaskSalesGraphWarmup rebuilds sales graphs for businesses with recent sales.
	TaskSalesGraphWarmup = "analytics:sales-graph-warmup"
)

// LedgerInvalidatePayload names the business whose caches must be bumped.
type LedgerInvalidatePayload struct {
	BusinessID string `json:"business_id"`
}

// NewLedgerInvalidateTask constructs an Asynq task.
func NewLedgerInvalidateTask(businessID string) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerInvalidatePayload{BusinessID: businessID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerInvalidate, data), nil
}

// SalesGraphWarmupPayload configures a warmup run. Empty FinancialYear
// means the current year.
type SalesGraphWarmupPayload struct {
	FinancialYear string `json:"financial_year,omitempty"`
}

// NewSalesGraphWarmupTask constructs an Asynq task.
func NewSalesGraphWarmupTask(financialYear string) (*asynq.Task, error) {
	data, err := json.Marshal(SalesGraphWarmupPayload{FinancialYear: financialYear})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSalesGraphWarmup, data), nil
}

// TaskIdempotencyCleanup purges idempotency keys past their retention window.
const TaskIdempotencyCleanup = "idempotency:cleanup"

// IdempotencyCleanupPayload sets the retention window. Zero means 72 hours.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
