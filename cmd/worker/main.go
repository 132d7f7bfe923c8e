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
	jobmetrics "github.com/aurora-cpe/aurora-cpe/internal/jobs"
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
	batchRenderer := render.NewBatchRenderer(slipsRepo, slipsService, renderer, providerRepo, logger, batchCfg)

	trail := exportlog.NewService(exportlog.NewRepository(pool), auditLogger, logger, cfg.RetentionDays)

	documents := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(documents.Registerer())
	batchJob := jobs.NewBatchRenderJob(batchRenderer, trail, tickets, cfg.ArchiveDir, logger, metrics, documents)

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: documents.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()
	cleanupJob := jobs.NewExportLogCleanupJob(trail, logger, metrics)

	cleanupTask, err := jobs.NewExportLogCleanupTask(time.Now().UTC())
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeBatchRender, Handler: batchJob.Handle},
			{Type: jobs.TaskTypeExportLogCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
