package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	Store       string `mapstructure:"STORE"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	SlotMinutes         int    `mapstructure:"SLOT_MINUTES"`
	ProviderName        string `mapstructure:"PROVIDER_NAME"`
	ProviderTimezone    string `mapstructure:"PROVIDER_TIMEZONE"`
	AdmissionMaxRetries int    `mapstructure:"ADMISSION_MAX_RETRIES"`

	StaticTokens          string `mapstructure:"STATIC_TOKENS"`
	JWTHMACSecret         string `mapstructure:"JWT_HMAC_SECRET"`
	BasicAuthUsername     string `mapstructure:"BASIC_AUTH_USERNAME"`
	BasicAuthPassword     string `mapstructure:"BASIC_AUTH_PASSWORD"`
	BasicAuthPasswordHash string `mapstructure:"BASIC_AUTH_PASSWORD_HASH"`

	RedisURL           string `mapstructure:"REDIS_URL"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize    int           `mapstructure:"OUTBOX_BATCH_SIZE"`

	OTelEnabled      bool    `mapstructure:"OTEL_ENABLED"`
	OTelEndpoint     string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSamplingRate float64 `mapstructure:"OTEL_SAMPLING_RATIO"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SLOT_MINUTES", "PROVIDER_NAME", "PROVIDER_TIMEZONE", "ADMISSION_MAX_RETRIES",
	"STATIC_TOKENS", "JWT_HMAC_SECRET", "BASIC_AUTH_USERNAME", "BASIC_AUTH_PASSWORD", "BASIC_AUTH_PASSWORD_HASH",
	"REDIS_URL", "RATE_LIMIT_PER_MINUTE",
	"KAFKA_BROKERS", "OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE",
	"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLING_RATIO",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL",
}

// Load reads the environment, falling back to a .env file when present, and
// validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("SLOT_MINUTES", 30)
	v.SetDefault("PROVIDER_NAME", "Default Provider")
	v.SetDefault("PROVIDER_TIMEZONE", "UTC")
	v.SetDefault("ADMISSION_MAX_RETRIES", 3)
	v.SetDefault("BASIC_AUTH_USERNAME", "provider")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("OUTBOX_BATCH_SIZE", 50)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("OTEL_SAMPLING_RATIO", 1.0)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) SlotDuration() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}

// Tokens returns the configured static bearer tokens.
func (c *Config) Tokens() []string {
	var out []string
	for _, t := range strings.Split(c.StaticTokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (c *Config) HasProviderCredentials() bool {
	return len(c.Tokens()) > 0 || c.JWTHMACSecret != "" ||
		c.BasicAuthPassword != "" || c.BasicAuthPasswordHash != ""
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}

	p, err := strconv.Atoi(c.Port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port (got %q)", c.Port)
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("SLOT_MINUTES must be positive, got %d", c.SlotMinutes)
	}
	if _, err := time.LoadLocation(c.ProviderTimezone); err != nil {
		return fmt.Errorf("PROVIDER_TIMEZONE %q: %w", c.ProviderTimezone, err)
	}
	if c.AdmissionMaxRetries < 0 {
		return fmt.Errorf("ADMISSION_MAX_RETRIES must not be negative")
	}
	if !c.IsDev() && !c.HasProviderCredentials() {
		return fmt.Errorf("provider credentials are required outside development " +
			"(set STATIC_TOKENS, JWT_HMAC_SECRET, BASIC_AUTH_PASSWORD or BASIC_AUTH_PASSWORD_HASH)")
	}
	return nil
}
