package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/renattofarid/fertiriego/internal/jobs"
)

// StatusEventJob consumes document status changes published after commit.
type StatusEventJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatusEventJob constructs the handler.
func NewStatusEventJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *StatusEventJob {
	return &StatusEventJob{Logger: logger, Metrics: metrics}
}

// Handle records one status change.
func (j *StatusEventJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StatusChangedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.DocumentID <= 0 {
		return asynq.SkipRetry
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskDocumentStatusChanged)

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "document status changed",
		slog.Int64("document_id", payload.DocumentID),
		slog.String("from", string(payload.From)),
		slog.String("to", string(payload.To)),
		slog.String("pending", payload.Pending.String()),
		slog.Time("at", payload.At))
	metrics.AddStatusEvent(string(payload.To))
	return tracker.End(nil)
}
