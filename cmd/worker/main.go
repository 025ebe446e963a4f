package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/renattofarid/fertiriego/internal/app"
	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/documents"
	"github.com/renattofarid/fertiriego/internal/platform/cache"
	"github.com/renattofarid/fertiriego/internal/platform/db"
	"github.com/renattofarid/fertiriego/internal/shared"
	"github.com/renattofarid/fertiriego/jobs"
)

const cleanupCron = "45 3 * * *"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var readModel *documents.Cache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		readModel = documents.NewCache(redisClient, cfg.ReadModelCacheTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	taxRate, err := cfg.TaxRate()
	if err != nil {
		logger.Error("tax rate", slog.Any("error", err))
		os.Exit(1)
	}

	idempotencyStore := shared.NewIdempotencyStore(pool)
	documentService := documents.NewService(
		documents.NewRepository(pool),
		billing.NewEngine(),
		documents.ServiceConfig{TaxRate: taxRate, Currency: cfg.BillingCurrency},
		documents.ServiceDeps{
			Cache:       readModel,
			Audit:       shared.NewAuditLogger(pool),
			Idempotency: idempotencyStore,
			Logger:      logger,
		},
	)

	overdueJob := jobs.NewOverdueScanJob(documentService, logger, nil)
	statusJob := jobs.NewStatusEventJob(logger, nil)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, cfg.IdempotencyRetention, logger, nil)

	overdueTask, err := jobs.NewOverdueScanTask(0)
	if err != nil {
		logger.Error("build overdue task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOverdueScan, Handler: overdueJob.Handle},
			{Type: jobs.TaskDocumentStatusChanged, Handler: statusJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverdueScanCron, Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
