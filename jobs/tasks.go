package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/money"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDocumentStatusChanged carries a committed document status change.
	TaskDocumentStatusChanged = "billing:document_status_changed"
	// TaskOverdueScan refreshes the overdue columns of open documents.
	TaskOverdueScan = "billing:overdue_scan"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "billing:idempotency_cleanup"
)

// StatusChangedPayload describes one document status transition.
type StatusChangedPayload struct {
	DocumentID int64                  `json:"document_id"`
	From       billing.DocumentStatus `json:"from"`
	To         billing.DocumentStatus `json:"to"`
	Pending    money.Money            `json:"pending"`
	At         time.Time              `json:"at"`
}

// NewStatusChangedTask builds the task for a status_changed event.
func NewStatusChangedTask(e billing.Event) (*asynq.Task, error) {
	if e.Type != billing.EventStatusChanged {
		return nil, fmt.Errorf("jobs: event %s is not a status change", e.Type)
	}
	data, err := json.Marshal(StatusChangedPayload{
		DocumentID: e.DocumentID,
		From:       e.From,
		To:         e.Status,
		Pending:    e.Pending,
		At:         e.At,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentStatusChanged, data), nil
}

// OverdueScanPayload configures the overdue scan.
type OverdueScanPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewOverdueScanTask builds an overdue scan task.
func NewOverdueScanTask(batchSize int) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueScanPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

// IdempotencyCleanupPayload configures how old a key must be before removal.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds an idempotency cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
