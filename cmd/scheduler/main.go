package main

import (
	"context"
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
	"reminderd/internal/queue"
	"reminderd/internal/repository"
	"reminderd/internal/scheduler"
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
		Dur("interval", cfg.Scheduler.Interval).
		Int("batch_limit", cfg.Scheduler.BatchLimit).
		Msg("starting reminderd scheduler")

	postgresDB := mustConnectPostgres(ctx, cfg)

	publisher, err := queue.NewPublisher(ctx, cfg.RabbitMQ, cfg.RabbitMQRetry.Strategy())
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer publisher.Close()

	store := repository.NewReminderRepository(postgresDB, cfg.PostgresRetry.Strategy())

	go serveMetrics(cfg.HTTP.MetricsAddr(":9091"))

	sched := scheduler.New(store, publisher, clock.New(), cfg.Scheduler.Interval, cfg.Scheduler.BatchLimit, cfg.Scheduler.StaleClaimAge)
	sched.Run(ctx)

	zlog.Logger.Info().Msg("scheduler stopped")
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
