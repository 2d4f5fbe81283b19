package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"reminderd/internal/clock"
	"reminderd/internal/config"
	"reminderd/internal/model"
	"reminderd/internal/notifier"
	"reminderd/internal/ports"
	"reminderd/internal/queue"
	"reminderd/internal/repository"
	"reminderd/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.NewConfig("", "")
	if err != nil {
		log.Fatal(err)
	}

	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.LogLevel); err != nil {
		log.Fatal(fmt.Errorf("error setting log level to '%s': %w", cfg.LogLevel, err))
	}

	zlog.Logger.Info().
		Str("env", cfg.Env).
		Int("concurrency", cfg.Worker.Concurrency).
		Str("notifier", cfg.Notifier.Kind).
		Msg("starting reminderd worker")

	postgresDB := mustConnectPostgres(ctx, cfg)

	consumer, err := queue.NewConsumer(ctx, cfg.RabbitMQ, cfg.RabbitMQRetry.Strategy())
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(cfg.Worker.Concurrency)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to start consuming")
	}

	store := repository.NewReminderRepository(postgresDB, cfg.PostgresRetry.Strategy())

	policy := model.RetryPolicy{
		MaxAttempts: cfg.Delivery.MaxAttempts,
		BackoffBase: cfg.Delivery.BackoffBase,
		BackoffCap:  cfg.Delivery.BackoffCap,
	}

	go serveMetrics(cfg.HTTP.MetricsAddr(":9092"))

	w := worker.New(store, buildNotifier(cfg), clock.New(), policy, cfg.Worker.Concurrency)
	if err := w.Run(ctx, deliveries); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Logger.Fatal().Err(err).Msg("worker stopped with error")
	}

	zlog.Logger.Info().Msg("worker stopped")
}

func buildNotifier(cfg *config.Config) ports.Notifier {
	switch cfg.Notifier.Kind {
	case "telegram":
		if cfg.Notifier.TelegramToken == "" {
			zlog.Logger.Fatal().Msg("telegram notifier requires REMINDERD_TELEGRAM_BOT_TOKEN")
		}
		return notifier.NewTelegramNotifier(cfg.Notifier.TelegramToken)
	default:
		return notifier.NewConsoleNotifier()
	}
}

func mustConnectPostgres(ctx context.Context, cfg *config.Config) *dbpg.DB {
	var db *dbpg.DB
	err := retry.DoContext(ctx, cfg.PostgresRetry.Strategy(), func() error {
		var connErr error
		db, connErr = dbpg.New(cfg.Database.MasterDSN, cfg.Database.SlaveDSNs,
			&dbpg.Options{
				MaxOpenConns:    cfg.Database.MaxOpenConnections,
				MaxIdleConns:    cfg.Database.MaxIdleConnections,
				ConnMaxLifetime: time.Duration(cfg.Database.ConnectionMaxLifetimeSeconds) * time.Second,
			})
		return connErr
	})
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	zlog.Logger.Info().Msg("connected to postgres")
	return db
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(address, mux); err != nil {
		zlog.Logger.Error().Err(err).Msg("metrics listener failed")
	}
}
