package app

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSecret() string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", MinJWTSecretBytes)))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret())
	t.Setenv("AUDIT_CONSUMER", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, "10050000", cfg.BankCode)
	require.Equal(t, "redis", cfg.RateLimitBackend)
	require.Equal(t, 5, cfg.LoginRateCapacity)
	require.Equal(t, time.Minute, cfg.LoginRateWindow)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, "@every 1h", cfg.HousekeepingSchedule)
	require.NotEmpty(t, cfg.AuditConsumer)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:              8080,
			DatabaseDriver:    "sqlite",
			DatabaseFile:      "bank.db",
			JWTSecret:         testSecret(),
			BankCode:          "10050000",
			RateLimitBackend:  "redis",
			LoginRateCapacity: 5,
			LoginRateWindow:   time.Minute,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short secret", func(c *Config) { c.JWTSecret = base64.StdEncoding.EncodeToString([]byte("short")) }, "JWT_SECRET"},
		{"secret not base64", func(c *Config) { c.JWTSecret = "***" }, "JWT_SECRET"},
		{"bank code letters", func(c *Config) { c.BankCode = "1005000X" }, "BANK_CODE"},
		{"bank code length", func(c *Config) { c.BankCode = "123" }, "BANK_CODE"},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "DATABASE_DRIVER"},
		{"postgres without url", func(c *Config) { c.DatabaseDriver = "postgres" }, "DATABASE_URL"},
		{"unknown limiter", func(c *Config) { c.RateLimitBackend = "memcached" }, "RATE_LIMIT_BACKEND"},
		{"zero capacity", func(c *Config) { c.LoginRateCapacity = 0 }, "LOGIN_RATE_CAPACITY"},
		{"bad port", func(c *Config) { c.Port = 0 }, "PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestJWTKeyAcceptsUnpaddedBase64(t *testing.T) {
	raw := []byte(strings.Repeat("z", 33))
	cfg := Config{JWTSecret: base64.RawStdEncoding.EncodeToString(raw)}

	key, err := cfg.JWTKey()
	require.NoError(t, err)
	require.Equal(t, raw, key)
}
