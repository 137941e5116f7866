package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/billus/billus-server/internal/app"
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

	notifier, err := jobs.NewBillNotifier(ctx, cfg.FCMCredentialsFile, logger)
	if err != nil {
		logger.Error("init fcm notifier", slog.Any("error", err))
		os.Exit(1)
	}

	var mailer jobs.Mailer = jobs.LogMailer{Logger: logger}
	if cfg.SendGridAPIKey != "" {
		mailer = jobs.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)
	}

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Notifier:  notifier,
		Mailer:    mailer,
	})

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
