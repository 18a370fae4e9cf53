package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/vitabu-erp/vitabu/internal/accounts"
	"github.com/vitabu-erp/vitabu/internal/app"
	"github.com/vitabu-erp/vitabu/internal/inventory"
	"github.com/vitabu-erp/vitabu/internal/ledger"
	"github.com/vitabu-erp/vitabu/internal/observability"
	"github.com/vitabu-erp/vitabu/internal/platform/cache"
	"github.com/vitabu-erp/vitabu/internal/platform/db"
	"github.com/vitabu-erp/vitabu/internal/reports"
	"github.com/vitabu-erp/vitabu/internal/shared"
	"github.com/vitabu-erp/vitabu/internal/tenants"
	"github.com/vitabu-erp/vitabu/internal/trading"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, reports will build uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	metrics := observability.NewMetrics()
	ledger.ObservePosted(metrics.JournalPosted)
	inventory.ObserveMovements(metrics.MovementApplied)
	db.ObserveRetries(metrics.TxRetry)
	audit := shared.NewAuditLogger(pool)

	tenantService := tenants.NewService(tenants.NewRepository(pool))

	accountRepo := accounts.NewRepository(pool)
	accountService := accounts.NewService(accountRepo, audit)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, audit)
	calculator := ledger.NewCalculator(ledgerRepo, accountService)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, audit)

	var reportCache *reports.Cache
	if redisClient != nil {
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}
	assembler := reports.NewAssembler(calculator, accountService, ledgerRepo)
	reportService := reports.NewService(assembler, reportCache, logger)

	// Every recorded mutation invalidates the tenant's cached reports in
	// addition to the audit trail, so documents never outlive a posting.
	tradingAudit := invalidatingAudit{audit: audit, reports: reportService}
	tradingRepo := trading.NewRepository(pool, cfg.TxMaxRetries)
	tradingService := trading.NewService(tradingRepo, tenantService, tradingAudit)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AccountsHandler:  accounts.NewHandler(logger, accountService),
		LedgerHandler:    ledger.NewHandler(logger, ledgerService, calculator),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		TradingHandler:   trading.NewHandler(logger, tradingService),
		ReportsHandler:   reports.NewHandler(logger, reportService),
		TenantsHandler:   tenants.NewHandler(logger, tenantService),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("engine listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("error", err))
	}
}

// invalidatingAudit records the audit event and then orphans the tenant's
// cached reports.
type invalidatingAudit struct {
	audit   *shared.AuditLogger
	reports *reports.Service
}

func (a invalidatingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	err := a.audit.Record(ctx, log)
	if log.TenantID != uuid.Nil {
		a.reports.Invalidate(ctx, log.TenantID)
	}
	return err
}
