package config

import (
	"time"

	"github.com/wb-go/wbf/retry"
)

type PostgresConfig struct {
	MasterDSN                    string
	SlaveDSNs                    []string
	MaxOpenConnections           int
	MaxIdleConnections           int
	ConnectionMaxLifetimeSeconds int
}

type RedisConfig struct {
	Host       string
	Port       int
	Password   string
	DB         int
	Expiration time.Duration
}

type RabbitMQConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	VHost    string
	Exchange string
	Queue    string
}

type HTTPConfig struct {
	Address        string
	MetricsAddress string
}

// MetricsAddr returns the configured metrics listener address, falling back
// to a per-binary default so colocated processes do not fight over one port.
func (h HTTPConfig) MetricsAddr(def string) string {
	if h.MetricsAddress != "" {
		return h.MetricsAddress
	}
	return def
}

type SchedulerConfig struct {
	Interval      time.Duration
	BatchLimit    int
	StaleClaimAge time.Duration
}

type WorkerConfig struct {
	Concurrency int
}

type DeliveryConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

type NotifierConfig struct {
	Kind          string // console | telegram
	TelegramToken string
}

type RetryConfig struct {
	Attempts          int
	DelayMilliseconds int
	Backoff           float64
}

func (c RetryConfig) Strategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Attempts,
		Delay:    time.Duration(c.DelayMilliseconds) * time.Millisecond,
		Backoff:  c.Backoff,
	}
}
