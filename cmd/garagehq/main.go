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

	"github.com/garagehq/garagehq/internal/app"
	"github.com/garagehq/garagehq/internal/auth"
	"github.com/garagehq/garagehq/internal/observability"
	"github.com/garagehq/garagehq/internal/platform/cache"
	"github.com/garagehq/garagehq/internal/platform/db"
	"github.com/garagehq/garagehq/internal/platform/storage"
	"github.com/garagehq/garagehq/internal/profiles"
	"github.com/garagehq/garagehq/internal/quotes"
	"github.com/garagehq/garagehq/internal/rbac"
	"github.com/garagehq/garagehq/internal/shared"
	"github.com/garagehq/garagehq/internal/users"
	"github.com/garagehq/garagehq/internal/vehicles"
	"github.com/garagehq/garagehq/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, "garagehq_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	objectStore, err := storage.New(ctx, storage.Config{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		UsePathStyle: cfg.S3UsePathStyle,
		PublicURL:    cfg.S3PublicURL,
	})
	if err != nil {
		logger.Error("connect object storage", slog.Any("error", err))
		os.Exit(1)
	}

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	legacyRole, err := rbac.ParseRole(cfg.LegacyProfileRole)
	if err != nil {
		logger.Error("legacy profile role", slog.Any("error", err))
		os.Exit(1)
	}

	broker := rbac.NewBroker()
	defer broker.Close()

	profileRepo := profiles.NewRepository(dbpool)
	profileService := profiles.NewService(profileRepo, legacyRole, logger)

	// Audit trail over the session event stream: every sign-in, sign-out
	// and access refresh re-evaluates the identity and is logged.
	sessionObserver := rbac.NewObserver(profileService, logger)
	go sessionObserver.Run(ctx, broker.Subscribe())

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, profileService, sessionManager, csrfManager, broker)

	metrics := observability.NewMetrics()

	vehicleRepo := vehicles.NewRepository(dbpool)
	vehicleService := vehicles.NewService(vehicleRepo, objectStore, logger)
	vehicleHandler := vehicles.NewHandler(logger, vehicleService)

	quoteRepo := quotes.NewRepository(dbpool)
	quoteService := quotes.NewService(quoteRepo, queueClient, cfg.SalesInbox, logger)
	quoteHandler := quotes.NewHandler(logger, quoteService, metrics)

	inviteRepo := users.NewInvitationRepository(dbpool)
	userService := users.NewService(authService, profileService, inviteRepo, queueClient, broker, cfg.AppBaseURL+"/admin", logger)
	userHandler := users.NewHandler(logger, userService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     authHandler,
		VehiclesHandler: vehicleHandler,
		QuotesHandler:   quoteHandler,
		UsersHandler:    userHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
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
