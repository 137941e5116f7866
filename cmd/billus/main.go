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

	"github.com/billus/billus-server/internal/affiliation"
	"github.com/billus/billus-server/internal/app"
	"github.com/billus/billus-server/internal/auth"
	"github.com/billus/billus-server/internal/billing"
	billinghttp "github.com/billus/billus-server/internal/billing/http"
	"github.com/billus/billus-server/internal/identity"
	"github.com/billus/billus-server/internal/platform/cache"
	"github.com/billus/billus-server/internal/platform/db"
	"github.com/billus/billus-server/jobs"
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

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	identityRepo := identity.NewRepository(pool)
	identityService := identity.NewService(identityRepo, logger)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	tokenStore := auth.NewTokenStore(redisClient)
	authService := auth.NewService(tokens, tokenStore, app.NewAccountDirectory(identityRepo), queue, logger)

	affiliationRepo := affiliation.NewRepository(pool)
	affiliationService := affiliation.NewService(affiliationRepo, logger)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, queue, logger)
	reportService := billing.NewReportService(billingRepo)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthMiddleware:     auth.NewMiddleware(tokens),
		AuthHandler:        auth.NewHandler(logger, authService),
		IdentityHandler:    identity.NewHandler(logger, identityService),
		AffiliationHandler: affiliation.NewHandler(logger, affiliationService),
		BillingHandler:     billinghttp.NewHandler(logger, billingService, reportService),
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
