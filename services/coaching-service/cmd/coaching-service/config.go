package main

import (
	"errors"
	"time"

	"github.com/strideacademy/coachbook/libs/config"
	otelx "github.com/strideacademy/coachbook/libs/otel"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"coaching-service"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Port        string `envconfig:"PORT" default:"8080"`
	GRPCPort    string `envconfig:"GRPC_PORT" default:"9090"`

	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns     int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"true"`

	KafkaBrokers       string        `envconfig:"KAFKA_BROKERS"`
	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`

	RedisAddr          string `envconfig:"REDIS_ADDR"`
	RedisPassword      string `envconfig:"REDIS_PASSWORD"`
	RedisDB            int    `envconfig:"REDIS_DB" default:"0"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	JWTSecret    string        `envconfig:"JWT_SECRET"`
	JWKSURL      string        `envconfig:"JWKS_URL"`
	JWKSCacheTTL time.Duration `envconfig:"JWKS_CACHE_TTL" default:"5m"`

	EnforceAvailability bool          `envconfig:"BOOKING_ENFORCE_AVAILABILITY" default:"false"`
	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	BodyLimitBytes      int64         `envconfig:"BODY_LIMIT_BYTES" default:"1048576"`
	CORSAllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS"`

	OTel otelx.Config `envconfig:"OTEL"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := config.Load("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = cfg.ServiceName
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if err := config.ValidPort("PORT", c.Port); err != nil {
		return err
	}
	if err := config.ValidPort("GRPC_PORT", c.GRPCPort); err != nil {
		return err
	}
	if c.JWTSecret == "" && c.JWKSURL == "" {
		return errors.New("one of JWT_SECRET or JWKS_URL is required")
	}
	if c.OutboxBatchSize <= 0 {
		return errors.New("OUTBOX_BATCH_SIZE must be positive")
	}
	return nil
}
