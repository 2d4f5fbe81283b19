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
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"reminderd/internal/clock"
	"reminderd/internal/config"
	"reminderd/internal/handler"
	"reminderd/internal/repository"
	"reminderd/internal/service"
	"reminderd/pkg/postgres"
)

const migrationsPath = "file://./db/migrations"

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

	zlog.Logger.Info().Str("env", cfg.Env).Msg("starting reminderd api")

	postgresDB := mustConnectPostgres(ctx, cfg)

	if err := postgres.MigrateUp(cfg.Database.MasterDSN, migrationsPath); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("couldn't migrate postgres on master DSN")
	}
	for i, dsn := range cfg.Database.SlaveDSNs {
		if len(dsn) == 0 {
			continue
		}
		if err := postgres.MigrateUp(dsn, migrationsPath); err != nil {
			zlog.Logger.Fatal().Err(err).Int("dsn_index", i).Msg("couldn't migrate postgres on slave DSN")
		}
	}

	redisClient := redis.New(
		fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		cfg.Redis.Password,
		cfg.Redis.DB,
	)

	store := repository.NewReminderRepository(postgresDB, cfg.PostgresRetry.Strategy())
	cache := repository.NewRedisRepository(redisClient, cfg.Redis.Expiration)
	svc := service.NewReminderService(store, cache, clock.New())

	router := handler.NewRouter(handler.NewReminderHandler(svc))

	go serveMetrics(cfg.HTTP.MetricsAddr(":9090"))

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Logger.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	zlog.Logger.Info().Str("address", cfg.HTTP.Address).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Logger.Fatal().Err(err).Msg("http server failed")
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
