package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "connect.sid", cfg.SessionName)
	assert.Equal(t, time.Hour, cfg.SessionMaxAge())
	assert.Equal(t, 15*time.Minute, cfg.RateWindow())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"PORT":            "9000",
		"SESSION_BACKEND": "redis",
		"COOKIE_SECURE":   "true",
		"CORS_ORIGINS":    "http://a.hu, http://b.hu ,",
		"RATE_LIMIT":      "10",
		"LOG_FORMAT":      "",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "redis", cfg.SessionBackend)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []string{"http://a.hu", "http://b.hu"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, "text", cfg.LogFormat, "empty value keeps the default")
}

func TestApplyEnvReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{
		"PORT":          "eighty",
		"COOKIE_SECURE": "maybe",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "COOKIE_SECURE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Port = 70000 }},
		{"zero session age", func(c *Config) { c.MaxAgeMinutes = 0 }},
		{"unknown backend", func(c *Config) { c.SessionBackend = "memcached" }},
		{"short secret", func(c *Config) { c.SessionSecret = "short" }},
		{"no rate window", func(c *Config) { c.RateWindowMin = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMergeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agromarket.yaml")
	content := "port: 8100\nsession_backend: redis\ncors_origins:\n  - http://shop.hu\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := Default()
	require.NoError(t, cfg.mergeFile(path))
	assert.Equal(t, 8100, cfg.Port)
	assert.Equal(t, "redis", cfg.SessionBackend)
	assert.Equal(t, []string{"http://shop.hu"}, cfg.CORSOrigins)
	assert.Equal(t, "connect.sid", cfg.SessionName, "keys absent from the file keep defaults")
}

func TestMergeFileMissing(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.mergeFile(filepath.Join(t.TempDir(), "nope.yaml")))
}
