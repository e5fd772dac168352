package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")
	t.Setenv("SESSION_STORE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:4000", cfg.Backend.BaseURL)
	assert.Equal(t, "/api", cfg.Backend.APIPrefix)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, "token", cfg.Session.CookieName)
	assert.Equal(t, 30*time.Second, cfg.Session.ExpiryWatchInterval())
	assert.Equal(t, time.Duration(0), cfg.Backend.Timeout())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.edu/")
	t.Setenv("BACKEND_API_PREFIX", "v1/")
	t.Setenv("BACKEND_TIMEOUT_SECONDS", "12")
	t.Setenv("SESSION_STORE", "REDIS")
	t.Setenv("UPLOAD_RATE_PER_SECOND", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.edu", cfg.Backend.BaseURL)
	assert.Equal(t, "/v1", cfg.Backend.APIPrefix)
	assert.Equal(t, "https://api.example.edu/v1/jobs", cfg.Backend.Endpoint("jobs"))
	assert.Equal(t, 12*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, SessionStoreRedis, cfg.Session.Store)
	assert.InDelta(t, 0.5, cfg.Upload.RatePerSecond, 0.0001)
}

func TestLoad_InvalidRate(t *testing.T) {
	t.Setenv("UPLOAD_RATE_PER_SECOND", "fast")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPLOAD_RATE_PER_SECOND")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backend: BackendConfig{BaseURL: "http://localhost:4000"},
			Session: SessionConfig{Store: SessionStoreMemory},
			Upload:  UploadConfig{MaxBodyBytes: 1024, RatePerSecond: 1, Burst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.Session.Store = "file" }, wantErr: "SESSION_STORE"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Session.Store = SessionStorePostgres }, wantErr: "POSTGRES_DSN"},
		{name: "relative backend", mutate: func(c *Config) { c.Backend.BaseURL = "localhost" }, wantErr: "BACKEND_BASE_URL"},
		{name: "zero body", mutate: func(c *Config) { c.Upload.MaxBodyBytes = 0 }, wantErr: "UPLOAD_MAX_BODY_BYTES"},
		{name: "zero burst", mutate: func(c *Config) { c.Upload.Burst = 0 }, wantErr: "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
