package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/freightdesk/freightdesk/internal/app"
	"github.com/freightdesk/freightdesk/internal/reporting"
	"github.com/freightdesk/freightdesk/jobs"
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
	reportingService := reporting.NewService(reportingRepo, reportingCache, logger, reporting.ServiceConfig{
		Location:      loc,
		FetchAttempts: cfg.FetchAttempts,
		FetchBackoff:  cfg.FetchBackoff,
	})

	warmup := jobs.NewReportWarmupJob(reportingService, dbpool, logger)
	invalidate := &jobs.ReportInvalidateJob{Cache: reportingCache, Logger: logger}

	warmupTask, err := jobs.NewReportWarmupTask(6, string(reporting.FreqMonthly))
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportWarmup, Handler: warmup.Handle},
			{Type: jobs.TaskReportInvalidate, Handler: invalidate.Handle},
		},
		Cron: []jobs.CronRegistration{
			// Warm the standing report set after the nightly booking load.
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker shut down")
}
