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

	"github.com/sangbadpatra/sangbadpatra/internal/app"
	"github.com/sangbadpatra/sangbadpatra/internal/auth"
	"github.com/sangbadpatra/sangbadpatra/internal/gate"
	"github.com/sangbadpatra/sangbadpatra/internal/news"
	"github.com/sangbadpatra/sangbadpatra/internal/observability"
	"github.com/sangbadpatra/sangbadpatra/internal/platform/cache"
	"github.com/sangbadpatra/sangbadpatra/internal/platform/db"
	"github.com/sangbadpatra/sangbadpatra/internal/policy"
	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
	"github.com/sangbadpatra/sangbadpatra/internal/users"
	"github.com/sangbadpatra/sangbadpatra/jobs"
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

	// Sessions live in redis; without it nobody can log in.
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

	codec := session.NewTokenCodec(cfg.SessionSecret, cfg.TokenIssuer, cfg.SessionTTL)
	broadcaster := session.NewBroadcaster(redisClient)
	store := session.NewStore(redisClient, codec, broadcaster, logger, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	table := policy.Default()
	g := gate.New(store, table, logger, metrics)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, codec, auditLogger, logger)
	authHandler := auth.NewHandler(logger, authService, store, csrfManager, metrics)

	newsCache := cache.NewVersioned(redisClient, "news", cfg.CacheTTL)
	newsRepo := news.NewRepository(dbpool)
	newsService := news.NewService(newsRepo, newsCache, auditLogger, logger)
	newsHandler := news.NewHandler(logger, newsService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, store, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Gate:         g,
		CSRFManager:  csrfManager,
		AuthHandler:  authHandler,
		NewsHandler:  newsHandler,
		UsersHandler: usersHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
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

	// Session lifecycle events double as an activity log.
	events, unsubscribe := broadcaster.Subscribe(ctx)
	defer unsubscribe()
	go func() {
		for evt := range events {
			logger.Info("session event",
				slog.String("kind", evt.Kind),
				slog.String("session_id", evt.SessionID),
				slog.Int64("user_id", evt.UserID))
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
