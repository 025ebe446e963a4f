package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/renattofarid/fertiriego/internal/app"
	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/documents"
	"github.com/renattofarid/fertiriego/internal/observability"
	"github.com/renattofarid/fertiriego/internal/platform/cache"
	"github.com/renattofarid/fertiriego/internal/platform/db"
	"github.com/renattofarid/fertiriego/internal/shared"
	"github.com/renattofarid/fertiriego/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.PGAutoMigrate {
		if err := db.Migrate(ctx, dbpool, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var readModel *documents.Cache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, read-model cache disabled", slog.Any("error", err))
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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	documentService := documents.NewService(
		documents.NewRepository(dbpool),
		billing.NewEngine(),
		documents.ServiceConfig{TaxRate: taxRate, Currency: cfg.BillingCurrency},
		documents.ServiceDeps{
			Cache:       readModel,
			Audit:       shared.NewAuditLogger(dbpool),
			Idempotency: shared.NewIdempotencyStore(dbpool),
			Events:      jobClient,
			Metrics:     metrics,
			Logger:      logger,
		},
	)
	documentsHandler := documents.NewHandler(logger, documentService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DocumentsHandler: documentsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
		Database:         dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
