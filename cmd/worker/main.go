package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vitabu-erp/vitabu/internal/accounts"
	"github.com/vitabu-erp/vitabu/internal/app"
	"github.com/vitabu-erp/vitabu/internal/inventory"
	"github.com/vitabu-erp/vitabu/internal/ledger"
	"github.com/vitabu-erp/vitabu/internal/platform/db"
	"github.com/vitabu-erp/vitabu/internal/shared"
	"github.com/vitabu-erp/vitabu/internal/tenants"
	"github.com/vitabu-erp/vitabu/jobs"
)

func main() {
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

	accountService := accounts.NewService(accounts.NewRepository(pool), nil)
	ledgerRepo := ledger.NewRepository(pool)
	calculator := ledger.NewCalculator(ledgerRepo, accountService)
	tenantRepo := tenants.NewRepository(pool)
	inventoryRepo := inventory.NewRepository(pool)
	keyStore := shared.NewIdempotencyStore(pool)

	integrityJob := jobs.NewGLIntegrityJob(calculator, tenantRepo, logger)
	reorderJob := jobs.NewReorderScanJob(inventoryRepo, tenantRepo, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(keyStore, cfg.IdempotencyRetention, logger)

	integrityTask, err := jobs.NewGLIntegrityTask(jobs.GLIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGLIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskReorderScan, Handler: reorderJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: jobs.NewReorderScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * 0", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
