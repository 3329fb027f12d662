package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("STORE", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30, cfg.SlotMinutes)
	assert.Equal(t, 30*time.Minute, cfg.SlotDuration())
	assert.Equal(t, "UTC", cfg.ProviderTimezone)
	assert.Equal(t, "provider", cfg.BasicAuthUsername)
	assert.Equal(t, 3, cfg.AdmissionMaxRetries)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	assert.True(t, cfg.IsDev())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE", "MEMORY")
	t.Setenv("SLOT_MINUTES", "15")
	t.Setenv("PORT", "9090")
	t.Setenv("STATIC_TOKENS", "a, b,,c")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 15*time.Minute, cfg.SlotDuration())
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Tokens())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:             "8080",
			Env:              "production",
			Store:            StoreMemory,
			SlotMinutes:      30,
			ProviderTimezone: "Asia/Kolkata",
			StaticTokens:     "secret",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "sqlite" }, wantErr: "STORE"},
		{name: "bad port", mutate: func(c *Config) { c.Port = "70000" }, wantErr: "PORT"},
		{name: "zero slot", mutate: func(c *Config) { c.SlotMinutes = 0 }, wantErr: "SLOT_MINUTES"},
		{name: "bad timezone", mutate: func(c *Config) { c.ProviderTimezone = "Mars/Olympus" }, wantErr: "PROVIDER_TIMEZONE"},
		{name: "negative retries", mutate: func(c *Config) { c.AdmissionMaxRetries = -1 }, wantErr: "ADMISSION_MAX_RETRIES"},
		{name: "no credentials in production", mutate: func(c *Config) { c.StaticTokens = "" }, wantErr: "credentials"},
		{name: "no credentials in development", mutate: func(c *Config) { c.StaticTokens = ""; c.Env = "development" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
