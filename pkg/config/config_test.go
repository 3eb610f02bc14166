package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got error: %v", err)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	// Zero out rate limiting values to ensure they are ignored when disabled.
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 0
	cfg.RateLimiting.WebSocket.Burst = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "empty server address",
			mutate: func(c *Config) {
				c.Server.Address = ""
			},
		},
		{
			name: "zero read timeout",
			mutate: func(c *Config) {
				c.Server.ReadTimeout = 0
			},
		},
		{
			name: "empty signal address",
			mutate: func(c *Config) {
				c.Signal.Address = ""
			},
		},
		{
			name: "half-open port range",
			mutate: func(c *Config) {
				c.WebRTC.PortRange.Min = 10000
				c.WebRTC.PortRange.Max = 0
			},
		},
		{
			name: "inverted port range",
			mutate: func(c *Config) {
				c.WebRTC.PortRange.Min = 20000
				c.WebRTC.PortRange.Max = 10000
			},
		},
		{
			name: "zero retry base delay",
			mutate: func(c *Config) {
				c.Mesh.RetryBaseDelay = 0
			},
		},
		{
			name: "zero max retry attempts",
			mutate: func(c *Config) {
				c.Mesh.MaxRetryAttempts = 0
			},
		},
		{
			name: "redis enabled without address",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = ""
			},
		},
		{
			name: "empty jwt secret",
			mutate: func(c *Config) {
				c.Auth.JWTSecret = ""
			},
		},
		{
			name: "http rps must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.Enabled = true
				c.RateLimiting.HTTP.RequestsPerSecond = 0
			},
		},
		{
			name: "ws messages per second must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.Enabled = true
				c.RateLimiting.WebSocket.MessagesPerSecond = 0
			},
		},
		{
			name: "ws max message size must be >= 0",
			mutate: func(c *Config) {
				c.RateLimiting.Enabled = true
				c.RateLimiting.WebSocket.MaxMessageSizeBytes = -1
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  address: ":9999"
mesh:
  retry_base_delay: 1s
  max_retry_attempts: 6
logging:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Address != ":9999" {
		t.Errorf("expected server address :9999, got %s", cfg.Server.Address)
	}
	if cfg.Mesh.RetryBaseDelay != time.Second {
		t.Errorf("expected retry base delay 1s, got %v", cfg.Mesh.RetryBaseDelay)
	}
	if cfg.Mesh.MaxRetryAttempts != 6 {
		t.Errorf("expected 6 retry attempts, got %d", cfg.Mesh.MaxRetryAttempts)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug log level, got %s", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Signal.Address != ":8081" {
		t.Errorf("expected default signal address, got %s", cfg.Signal.Address)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CALLS_SERVER_ADDRESS", ":7070")
	t.Setenv("CALLS_REDIS_ADDRESS", "redis-host:6379")
	t.Setenv("CALLS_JWT_SECRET", "env-secret")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Server.Address != ":7070" {
		t.Errorf("expected server address from env, got %s", cfg.Server.Address)
	}
	if cfg.Redis.Address != "redis-host:6379" {
		t.Errorf("expected redis address from env, got %s", cfg.Redis.Address)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected jwt secret from env, got %s", cfg.Auth.JWTSecret)
	}
}
