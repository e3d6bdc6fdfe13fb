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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/freightdesk/freightdesk/internal/app"
	"github.com/freightdesk/freightdesk/internal/observability"
	"github.com/freightdesk/freightdesk/internal/reporting"
	"github.com/freightdesk/freightdesk/internal/reporting/export"
	reportinghttp "github.com/freightdesk/freightdesk/internal/reporting/http"
	"github.com/freightdesk/freightdesk/jobs"
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

	loc, err := time.LoadLocation(cfg.ReportTimezone)
	if err != nil {
		logger.Error("load report timezone", slog.String("tz", cfg.ReportTimezone), slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	reportingRepo := reporting.NewRepository(dbpool)
	reportingCache := reporting.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportingCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	reportingService := reporting.NewService(reportingRepo, reportingCache, logger, reporting.ServiceConfig{
		Location:      loc,
		FetchAttempts: cfg.FetchAttempts,
		FetchBackoff:  cfg.FetchBackoff,
	})

	exportWriter := &export.Writer{
		Prefix:           cfg.ExportPrefix,
		ChunkRows:        cfg.ExportChunkRows,
		ChunkingDisabled: cfg.ExportChunkingDisabled,
		Location:         loc,
	}

	metrics := observability.NewMetrics()
	reportingHandler := reportinghttp.NewHandler(logger, reportingService, exportWriter, metrics)

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
		ReportingHandler: reportingHandler,
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
