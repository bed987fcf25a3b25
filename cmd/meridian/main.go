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

	"github.com/meridian-commerce/meridian-commerce/internal/app"
	"github.com/meridian-commerce/meridian-commerce/internal/auth"
	"github.com/meridian-commerce/meridian-commerce/internal/notify"
	"github.com/meridian-commerce/meridian-commerce/internal/observability"
	"github.com/meridian-commerce/meridian-commerce/internal/platform/cache"
	"github.com/meridian-commerce/meridian-commerce/internal/platform/db"
	"github.com/meridian-commerce/meridian-commerce/internal/platform/httpx"
	"github.com/meridian-commerce/meridian-commerce/internal/rbac"
	"github.com/meridian-commerce/meridian-commerce/internal/roles"
	"github.com/meridian-commerce/meridian-commerce/internal/users"
	"github.com/meridian-commerce/meridian-commerce/jobs"
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
	httpx.SetDebug(!cfg.IsProduction())

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
	store := cache.NewStore(redisClient)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	mailer := notify.NewMailer(asynqClient, cfg.SMTPFrom, logger)

	authRepo := auth.NewRepository(pool)
	sessionManager := auth.NewSessionManager(authRepo, store, cfg.SessionTTL, logger)
	authService := auth.NewService(
		authRepo,
		auth.NewHasher(),
		auth.NewTokenCodec(cfg.TokenSecret),
		auth.NewLockoutTracker(store),
		sessionManager,
		mailer,
		metrics,
		logger,
	)
	authHandler := auth.NewHandler(logger, authService)

	rbacRepo := rbac.NewRepository(pool)
	permissionCache := rbac.NewPermissionCache(store, rbacRepo, cfg.PermissionCacheTTL, metrics)
	rbacService := rbac.NewService(rbacRepo, permissionCache, sessionManager, logger)
	rbacMiddleware := rbac.Middleware{Gate: rbac.NewGate(permissionCache), Logger: logger}
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware)

	rolesService := roles.NewService(roles.NewRepository(pool), rbacService)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacService, rbacMiddleware)

	usersService := users.NewService(users.NewRepository(pool), rbacService, mailer)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthService:        authService,
		AuthHandler:        authHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
