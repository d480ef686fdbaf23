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

	"github.com/metrik/metrik/internal/accounts"
	"github.com/metrik/metrik/internal/analytics"
	"github.com/metrik/metrik/internal/app"
	"github.com/metrik/metrik/internal/bom"
	"github.com/metrik/metrik/internal/contractor"
	"github.com/metrik/metrik/internal/ledger"
	"github.com/metrik/metrik/internal/observability"
	"github.com/metrik/metrik/internal/platform/cache"
	"github.com/metrik/metrik/internal/platform/db"
	"github.com/metrik/metrik/internal/platform/httpx"
	"github.com/metrik/metrik/internal/rbac"
	"github.com/metrik/metrik/internal/shared"
	"github.com/metrik/metrik/internal/voucher"
	"github.com/metrik/metrik/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: time.Hour})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	validator := httpx.NewValidator()
	rbacMiddleware := rbac.Middleware{Logger: logger}
	sessions := shared.NewSessionStore(redisClient, cfg.SessionPrefix, cfg.SessionTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	accountsService := accounts.NewService(accounts.NewRepository(dbpool), auditLogger, jobClient)
	accountsHandler := accounts.NewHandler(logger, accountsService, validator, rbacMiddleware)

	ledgerCache := cache.NewVersioned(redisClient, "metrik:ledger", cfg.LedgerCacheTTL)
	ledgerService := ledger.NewService(ledger.NewRepository(dbpool), accountsService, ledgerCache, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, rbacMiddleware)

	analyticsCache := cache.NewVersioned(redisClient, "metrik:analytics", cfg.AnalyticsCacheTTL)
	analyticsService := analytics.NewService(analytics.NewRepository(dbpool), analyticsCache)
	analyticsHandler := analytics.NewHandler(logger, analyticsService, rbacMiddleware)

	contractorRepo := contractor.NewRepository(dbpool)
	contractorService := contractor.NewService(contractorRepo)
	contractorHandler := contractor.NewHandler(logger, contractorService, contractorRepo, validator, rbacMiddleware)

	voucherService := voucher.NewService(voucher.NewRepository(dbpool), voucher.NewTransformer(cfg.PostingAccounts()), voucher.ServiceDeps{
		Audit:       auditLogger,
		Idempotency: idempotencyStore,
		Contractors: contractorService,
		Invalidator: jobClient,
		Logger:      logger,
	})
	voucherHandler := voucher.NewHandler(logger, voucherService, validator)

	bomService := bom.NewService(bom.NewRepository(dbpool), auditLogger)
	bomHandler := bom.NewHandler(logger, bomService, validator, rbacMiddleware)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Sessions:          sessions,
		Metrics:           metrics,
		VoucherHandler:    voucherHandler,
		LedgerHandler:     ledgerHandler,
		AnalyticsHandler:  analyticsHandler,
		ContractorHandler: contractorHandler,
		BOMHandler:        bomHandler,
		AccountsHandler:   accountsHandler,
		JobHandler:        jobHandler,
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
