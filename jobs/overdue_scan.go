package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/renattofarid/fertiriego/internal/billing"
	jobmetrics "github.com/renattofarid/fertiriego/internal/jobs"
	"github.com/renattofarid/fertiriego/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	defaultScanBatch       = 200
	defaultScanConcurrency = 4
)

// OverdueRefresher recomputes the derived listing columns of documents.
type OverdueRefresher interface {
	OpenDocumentIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
	RefreshDerived(ctx context.Context, id int64) (billing.Summary, error)
}

// OverdueScanJob walks every open document and stores its overdue
// installment count as of today.
type OverdueScanJob struct {
	Documents   OverdueRefresher
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
	clock       func() time.Time
}

// NewOverdueScanJob wires dependencies for the scan handler.
func NewOverdueScanJob(documents OverdueRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Documents:   documents,
		Logger:      logger,
		Metrics:     metrics,
		Concurrency: defaultScanConcurrency,
		clock:       time.Now,
	}
}

// ScanResult totals one scan run.
type ScanResult struct {
	Scanned int
	// Overdue counts documents with at least one overdue installment per kind.
	Overdue map[billing.Kind]int
}

// Handle processes overdue scan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Documents == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskOverdueScan)
	start := j.now()
	logger := j.logger()
	logger.Info("starting overdue scan")

	result, err := j.Scan(ctx, payload.BatchSize)
	if err != nil {
		logger.Error("overdue scan", slog.Int("scanned", result.Scanned), slog.Any("error", err))
		return tracker.End(err)
	}
	for _, kind := range []billing.Kind{billing.KindPurchase, billing.KindSale, billing.KindQuotation, billing.KindCreditNote} {
		j.metrics().SetOverdue(string(kind), result.Overdue[kind])
	}
	logger.Info("completed overdue scan", slog.Int("scanned", result.Scanned), slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

// Scan refreshes every open document, batchSize ids at a time.
func (j *OverdueScanJob) Scan(ctx context.Context, batchSize int) (ScanResult, error) {
	if batchSize <= 0 {
		batchSize = defaultScanBatch
	}
	concurrency := j.Concurrency
	if concurrency <= 0 {
		concurrency = defaultScanConcurrency
	}
	result := ScanResult{Overdue: make(map[billing.Kind]int)}
	var mu sync.Mutex

	var afterID int64
	for {
		ids, err := j.Documents.OpenDocumentIDs(ctx, afterID, batchSize)
		if err != nil {
			return result, err
		}
		if len(ids) == 0 {
			return result, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, id := range ids {
			g.Go(func() error {
				summary, err := j.Documents.RefreshDerived(gctx, id)
				if errors.Is(err, shared.ErrNotFound) {
					return nil
				}
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				result.Scanned++
				if summary.OverdueInstallments > 0 {
					result.Overdue[summary.Kind]++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}
		if len(ids) < batchSize {
			return result, nil
		}
		afterID = ids[len(ids)-1]
	}
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskOverdueScan))
}

func (j *OverdueScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
