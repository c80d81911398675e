package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort           int      `env:"HTTP_PORT"`
	LogLevel           string   `env:"LOG_LEVEL"`
	DatabaseURL        string   `env:"DATABASE_URL"`
	MigrationsPath     string   `env:"MIGRATIONS_PATH"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	Esewa struct {
		ProductCode   string        `env:"ESEWA_PRODUCT_CODE"`
		SecretKey     string        `env:"ESEWA_SECRET_KEY"`
		PaymentURL    string        `env:"ESEWA_PAYMENT_URL"`
		StatusURL     string        `env:"ESEWA_STATUS_URL"`
		SuccessURL    string        `env:"ESEWA_SUCCESS_URL"`
		FailureURL    string        `env:"ESEWA_FAILURE_URL"`
		VerifyStatus  bool          `env:"ESEWA_VERIFY_STATUS"`
		StatusTimeout time.Duration `env:"ESEWA_STATUS_TIMEOUT"`
		StatusRPS     float64       `env:"ESEWA_STATUS_RPS"`
	}

	KafkaBrokerURL           string `env:"KAFKA_BROKER_URL"`
	KafkaPurchaseEventsTopic string `env:"KAFKA_PURCHASE_EVENTS_TOPIC"`

	OutboxEnabled      bool          `env:"OUTBOX_ENABLED"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"`

	ReconcileEnabled   bool          `env:"RECONCILE_ENABLED"`
	ReconcileInterval  time.Duration `env:"RECONCILE_INTERVAL"`
	ReconcileMinAge    time.Duration `env:"RECONCILE_MIN_AGE"`
	ReconcileBatchSize int           `env:"RECONCILE_BATCH_SIZE"`
}

// LoadConfig reads the environment. Every missing required key and every
// malformed value is reported in a single error.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	l := &loader{}

	cfg.HTTPPort = l.getEnvAsInt("HTTP_PORT", 3001)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DatabaseURL = l.getRequiredEnv("DATABASE_URL")
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file://migrations")
	cfg.CORSAllowedOrigins = splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"))

	cfg.Esewa.ProductCode = l.getRequiredEnv("ESEWA_PRODUCT_CODE")
	cfg.Esewa.SecretKey = l.getRequiredEnv("ESEWA_SECRET_KEY")
	cfg.Esewa.PaymentURL = l.getRequiredEnv("ESEWA_PAYMENT_URL")
	cfg.Esewa.StatusURL = l.getRequiredEnv("ESEWA_STATUS_URL")
	cfg.Esewa.SuccessURL = l.getRequiredEnv("ESEWA_SUCCESS_URL")
	cfg.Esewa.FailureURL = l.getRequiredEnv("ESEWA_FAILURE_URL")
	cfg.Esewa.VerifyStatus = l.getEnvAsBool("ESEWA_VERIFY_STATUS", true)
	cfg.Esewa.StatusTimeout = l.getEnvAsDuration("ESEWA_STATUS_TIMEOUT", 10*time.Second)
	cfg.Esewa.StatusRPS = l.getEnvAsFloat("ESEWA_STATUS_RPS", 2)

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaPurchaseEventsTopic = getEnvOrDefault("KAFKA_PURCHASE_EVENTS_TOPIC", "purchase_events")

	cfg.OutboxEnabled = l.getEnvAsBool("OUTBOX_ENABLED", true)
	cfg.OutboxPollInterval = l.getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = l.getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)
	cfg.OutboxBatchSize = l.getEnvAsInt("OUTBOX_BATCH_SIZE", 10)

	cfg.ReconcileEnabled = l.getEnvAsBool("RECONCILE_ENABLED", true)
	cfg.ReconcileInterval = l.getEnvAsDuration("RECONCILE_INTERVAL", time.Minute)
	cfg.ReconcileMinAge = l.getEnvAsDuration("RECONCILE_MIN_AGE", 5*time.Minute)
	cfg.ReconcileBatchSize = l.getEnvAsInt("RECONCILE_BATCH_SIZE", 50)

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		l.errs = append(l.errs, fmt.Errorf("HTTP_PORT out of range: %d", cfg.HTTPPort))
	}
	if cfg.OutboxBatchSize <= 0 {
		l.errs = append(l.errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if cfg.ReconcileBatchSize <= 0 {
		l.errs = append(l.errs, errors.New("RECONCILE_BATCH_SIZE must be positive"))
	}

	if len(l.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(l.errs...))
	}
	return cfg, nil
}

func (c *Config) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokerURL)
}

func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

type loader struct {
	errs []error
}

func (l *loader) getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		l.errs = append(l.errs, fmt.Errorf("%s is required", key))
		return ""
	}
	return value
}

func (l *loader) getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnvOrDefault(key, strconv.FormatFloat(defaultValue, 'f', -1, 64))
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return value
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
