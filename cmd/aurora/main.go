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

	"github.com/aurora-cpe/aurora-cpe/internal/app"
	"github.com/aurora-cpe/aurora-cpe/internal/exportlog"
	"github.com/aurora-cpe/aurora-cpe/internal/exports"
	"github.com/aurora-cpe/aurora-cpe/internal/ledger"
	"github.com/aurora-cpe/aurora-cpe/internal/observability"
	"github.com/aurora-cpe/aurora-cpe/internal/platform/cache"
	"github.com/aurora-cpe/aurora-cpe/internal/platform/db"
	"github.com/aurora-cpe/aurora-cpe/internal/provider"
	"github.com/aurora-cpe/aurora-cpe/internal/shared"
	"github.com/aurora-cpe/aurora-cpe/internal/slips"
	"github.com/aurora-cpe/aurora-cpe/internal/slips/render"
	"github.com/aurora-cpe/aurora-cpe/jobs"
	"github.com/aurora-cpe/aurora-cpe/report"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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
	tickets := cache.NewTicketStore(redisClient, cfg.TicketTTL)

	auditLogger := shared.NewAuditLogger(pool)

	loc, err := time.LoadLocation(cfg.TaxTimezone)
	if err != nil {
		logger.Error("load tax timezone", slog.String("tz", cfg.TaxTimezone), slog.Any("error", err))
		os.Exit(1)
	}

	ledgerRepo := ledger.NewRepository(pool)
	careDays := ledger.NewEnrollmentCareDays(pool)
	aggregator := ledger.NewAggregator(ledgerRepo, ledger.NewCategoryClassifier(), careDays, loc)

	providerRepo := provider.NewRepository(pool)
	providerHandler := provider.NewHandler(logger, providerRepo, providerRepo)

	slipsRepo := slips.NewRepository(pool)
	personRepo := slips.NewPersonRepository(pool)
	slipsService := slips.NewService(slipsRepo, personRepo, aggregator, providerRepo, auditLogger, logger)

	reportClient := report.NewClient(cfg.GotenbergURL)
	renderer, err := render.NewRenderer(reportClient)
	if err != nil {
		logger.Error("init slip renderer", slog.Any("error", err))
		os.Exit(1)
	}

	batchCfg := render.DefaultBatchConfig()
	if cfg.MaxBatchSize > 0 {
		batchCfg.MaxBatchSize = cfg.MaxBatchSize
	}

	exportLogRepo := exportlog.NewRepository(pool)
	trail := exportlog.NewService(exportLogRepo, auditLogger, logger, cfg.RetentionDays)
	exportLogHandler := exportlog.NewHandler(logger, trail)

	metrics := observability.NewMetrics()
	slipsHandler := slips.NewHandler(logger, slipsService, metrics)

	exportsService := exports.NewService(ledgerRepo, ledgerRepo, trail, logger, cfg.ExportDir)
	exportsHandler := exports.NewHandler(logger, exportsService, metrics)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	enqueueBatch := func(ctx context.Context, logID int64, slipIDs []string, actorID int64) error {
		_, err := jobsClient.EnqueueBatchRender(ctx, jobs.BatchRenderPayload{
			ExportLogID: logID,
			SlipIDs:     slipIDs,
			RequestedBy: actorID,
		})
		return err
	}
	renderHandler := render.NewHandler(logger, slipsService, renderer, providerRepo, trail, tickets, enqueueBatch, batchCfg.MaxBatchSize)

	slipsService.WithNotifier(func(ctx context.Context, to, subject, body string) error {
		_, err := jobsClient.EnqueueSendEmail(ctx, jobs.SendEmailPayload{To: to, Subject: subject, Body: body})
		return err
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SlipsHandler:     slipsHandler,
		RenderHandler:    renderHandler,
		ExportsHandler:   exportsHandler,
		ExportLogHandler: exportLogHandler,
		ProviderHandler:  providerHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
