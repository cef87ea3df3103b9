package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sangbadpatra/sangbadpatra/internal/app"
	"github.com/sangbadpatra/sangbadpatra/internal/auth"
	"github.com/sangbadpatra/sangbadpatra/internal/fetch"
	jobmetrics "github.com/sangbadpatra/sangbadpatra/internal/jobs"
	"github.com/sangbadpatra/sangbadpatra/internal/platform/cache"
	"github.com/sangbadpatra/sangbadpatra/internal/platform/db"
	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
	"github.com/sangbadpatra/sangbadpatra/jobs"
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
	defer redisClient.Close()

	codec := session.NewTokenCodec(cfg.SessionSecret, cfg.TokenIssuer, cfg.SessionTTL)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, codec, shared.NewAuditLogger(pool), logger)

	broadcaster := session.NewBroadcaster(redisClient)
	portalClient := fetch.NewClient(fetch.Config{
		BaseURL: cfg.PortalBaseURL,
		Logger:  logger,
		OnUnauthorized: func(ctx context.Context) {
			if err := broadcaster.Publish(ctx, session.Event{Kind: session.EventLogout}); err != nil {
				logger.Warn("publish logout event", slog.Any("error", err))
			}
		},
	})

	metrics := jobmetrics.NewMetrics(nil)
	purgeJob := jobs.NewSessionPurgeJob(authService, logger, metrics)
	warmupJob := jobs.NewFrontPageWarmupJob(portalClient, logger, metrics)

	purgeTask, err := jobs.NewSessionPurgeTask(1000)
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewFrontPageWarmupTask(nil, 3)
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionPurge, Handler: purgeJob.Handle},
			{Type: jobs.TaskFrontPageWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/10 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
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
