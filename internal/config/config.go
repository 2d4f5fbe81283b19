package config

import (
	"fmt"
	"time"

	"github.com/wb-go/wbf/config"
)

type Config struct {
	Env       string
	LogLevel  string
	Database  PostgresConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Worker    WorkerConfig
	Delivery  DeliveryConfig
	Notifier  NotifierConfig

	PostgresRetry RetryConfig
	RabbitMQRetry RetryConfig
}

func NewConfig(envFilePath string, configFilePath string) (*Config, error) {
	cfg := config.New()

	if envFilePath != "" {
		if err := cfg.LoadEnvFiles(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}
	cfg.EnableEnv("")

	if configFilePath != "" {
		if err := cfg.LoadConfigFiles(configFilePath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	c := &Config{}
	c.Env = getString(cfg, "REMINDERD_ENV", "dev")
	c.LogLevel = getString(cfg, "REMINDERD_LOG_LEVEL", "info")

	// Postgres
	c.Database.MasterDSN = cfg.GetString("REMINDERD_POSTGRES_MASTER_DSN")
	c.Database.SlaveDSNs = cfg.GetStringSlice("REMINDERD_POSTGRES_SLAVE_DSNS")
	c.Database.MaxOpenConnections = getInt(cfg, "REMINDERD_POSTGRES_MAX_OPEN_CONNECTIONS", 5)
	c.Database.MaxIdleConnections = getInt(cfg, "REMINDERD_POSTGRES_MAX_IDLE_CONNECTIONS", 5)
	c.Database.ConnectionMaxLifetimeSeconds = getInt(cfg, "REMINDERD_POSTGRES_CONNECTION_MAX_LIFETIME_SECONDS", 0)

	// Redis
	c.Redis.Host = getString(cfg, "REMINDERD_REDIS_HOST", "localhost")
	c.Redis.Port = getInt(cfg, "REMINDERD_REDIS_PORT", 6379)
	c.Redis.Password = cfg.GetString("REMINDERD_REDIS_PASSWORD")
	c.Redis.DB = getInt(cfg, "REMINDERD_REDIS_DB", 0)
	c.Redis.Expiration = getDuration(cfg, "REMINDERD_REDIS_EXPIRATION", 5*time.Minute)

	// RabbitMQ
	c.RabbitMQ.User = getString(cfg, "REMINDERD_RABBITMQ_USER", "guest")
	c.RabbitMQ.Password = getString(cfg, "REMINDERD_RABBITMQ_PASSWORD", "guest")
	c.RabbitMQ.Host = getString(cfg, "REMINDERD_RABBITMQ_HOST", "localhost")
	c.RabbitMQ.Port = getInt(cfg, "REMINDERD_RABBITMQ_PORT", 5672)
	c.RabbitMQ.VHost = cfg.GetString("REMINDERD_RABBITMQ_VHOST")
	c.RabbitMQ.Exchange = getString(cfg, "REMINDERD_RABBITMQ_EXCHANGE", "reminders")
	c.RabbitMQ.Queue = getString(cfg, "REMINDERD_RABBITMQ_QUEUE", "reminders.dispatch")

	// HTTP
	c.HTTP.Address = getString(cfg, "REMINDERD_HTTP_ADDRESS", ":8080")
	c.HTTP.MetricsAddress = cfg.GetString("REMINDERD_METRICS_ADDRESS")

	// Scheduler
	c.Scheduler.Interval = getDuration(cfg, "REMINDERD_SCHEDULER_INTERVAL", 5*time.Second)
	c.Scheduler.BatchLimit = getInt(cfg, "REMINDERD_SCHEDULER_BATCH_LIMIT", 100)
	c.Scheduler.StaleClaimAge = getDuration(cfg, "REMINDERD_SCHEDULER_STALE_CLAIM_AGE", 5*time.Minute)

	// Worker
	c.Worker.Concurrency = getInt(cfg, "REMINDERD_WORKER_CONCURRENCY", 4)

	// Delivery retry policy
	c.Delivery.MaxAttempts = getInt(cfg, "REMINDERD_DELIVERY_MAX_ATTEMPTS", 5)
	c.Delivery.BackoffBase = getDuration(cfg, "REMINDERD_DELIVERY_BACKOFF_BASE", 30*time.Second)
	c.Delivery.BackoffCap = getDuration(cfg, "REMINDERD_DELIVERY_BACKOFF_CAP", 15*time.Minute)

	// Notifier
	c.Notifier.Kind = getString(cfg, "REMINDERD_NOTIFIER_KIND", "console")
	c.Notifier.TelegramToken = cfg.GetString("REMINDERD_TELEGRAM_BOT_TOKEN")

	// Call-level retries around external dependencies
	c.PostgresRetry.Attempts = getInt(cfg, "REMINDERD_RETRY_POSTGRES_ATTEMPTS", 3)
	c.PostgresRetry.DelayMilliseconds = getInt(cfg, "REMINDERD_RETRY_POSTGRES_DELAY_MS", 200)
	c.PostgresRetry.Backoff = getFloat(cfg, "REMINDERD_RETRY_POSTGRES_BACKOFF", 2)

	c.RabbitMQRetry.Attempts = getInt(cfg, "REMINDERD_RETRY_RABBITMQ_ATTEMPTS", 5)
	c.RabbitMQRetry.DelayMilliseconds = getInt(cfg, "REMINDERD_RETRY_RABBITMQ_DELAY_MS", 500)
	c.RabbitMQRetry.Backoff = getFloat(cfg, "REMINDERD_RETRY_RABBITMQ_BACKOFF", 2)

	return c, nil
}

func getString(cfg *config.Config, key, def string) string {
	if v := cfg.GetString(key); v != "" {
		return v
	}
	return def
}

func getInt(cfg *config.Config, key string, def int) int {
	if cfg.GetString(key) == "" {
		return def
	}
	return cfg.GetInt(key)
}

func getFloat(cfg *config.Config, key string, def float64) float64 {
	if cfg.GetString(key) == "" {
		return def
	}
	return cfg.GetFloat64(key)
}

func getDuration(cfg *config.Config, key string, def time.Duration) time.Duration {
	raw := cfg.GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
