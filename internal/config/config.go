package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Provider names accepted by PROVIDER.
const (
	ProviderStub    = "stub"
	ProviderWebhook = "webhook"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	Provider   string `env:"PROVIDER,default=stub"`
	WebhookURL string `env:"WEBHOOK_URL"`

	WorkerConcurrency int `env:"WORKER_CONCURRENCY,default=4"`
	WorkerPrefetch    int `env:"WORKER_PREFETCH,default=1"`
	RateLimitPerSec   int `env:"RATE_LIMIT_PER_SEC,default=100"`

	// SendingStaleSeconds bounds how long a SENDING claim is honoured before
	// a redelivered job may take it over. Keep it above realistic provider latency.
	SendingStaleSeconds int `env:"SENDING_STALE_SECONDS,default=300"`
	QueueMaxDeliveries  int `env:"QUEUE_MAX_DELIVERIES,default=5"`
	MaxSendAttempts     int `env:"MAX_SEND_ATTEMPTS,default=5"`

	ReconcileIntervalSeconds int `env:"RECONCILE_INTERVAL_SECONDS,default=60"`
	ReconcileGraceSeconds    int `env:"RECONCILE_GRACE_SECONDS,default=120"`
	ReconcileBatchSize       int `env:"RECONCILE_BATCH_SIZE,default=100"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment values win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderStub:
	case ProviderWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required when PROVIDER=%s", ProviderWebhook)
		}
	default:
		return fmt.Errorf("unknown PROVIDER %q", c.Provider)
	}
	if c.SendingStaleSeconds <= 0 {
		return fmt.Errorf("SENDING_STALE_SECONDS must be positive")
	}
	return nil
}

func (c *Config) SendingStaleAfter() time.Duration {
	return time.Duration(c.SendingStaleSeconds) * time.Second
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

func (c *Config) ReconcileGrace() time.Duration {
	return time.Duration(c.ReconcileGraceSeconds) * time.Second
}
