package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 5*time.Second, cfg.Server.SlowThreshold())
	assert.Equal(t, 24*time.Hour, cfg.Server.TokenTTL())
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"empty nats url", func(c *Config) { c.NATS.URL = "" }},
		{"empty gateway url", func(c *Config) { c.Gateway.URL = "" }},
		{"no providers", func(c *Config) { c.LLM.Order = nil }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "redis" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "standards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  requests_per_minute: 30
llm:
  order: [ollama]
  providers:
    ollama:
      url: http://llm.internal:11434
      models:
        fast: qwen2.5-coder:7b
sync:
  root: /srv/standards
  excludes:
    - "**/draft-*.md"
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30, cfg.Server.RequestsPerMinute)
	assert.Equal(t, []string{"ollama"}, cfg.LLM.Order)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.LLM.Providers["ollama"].Models["fast"])
	assert.Equal(t, "/srv/standards", cfg.Sync.Root)
	assert.Equal(t, []string{"**/draft-*.md"}, cfg.Sync.Excludes)

	// Unset fields keep their defaults.
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "standards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not-a-map"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestMerge_NonZeroWins(t *testing.T) {
	base := Default()
	base.Merge(&Config{
		Server: ServerConfig{Addr: ":7000", SlowThresholdMs: 100},
		NATS:   NATSConfig{URL: "nats://broker:4222"},
		Sync:   SyncConfig{Watch: true},
		Cache:  CacheConfig{Backend: "nats"},
		LLM:    LLMConfig{Order: []string{"anthropic"}},
	})

	assert.Equal(t, ":7000", base.Server.Addr)
	assert.Equal(t, 100, base.Server.SlowThresholdMs)
	assert.Equal(t, "nats://broker:4222", base.NATS.URL)
	assert.True(t, base.Sync.Watch)
	assert.Equal(t, "nats", base.Cache.Backend)
	assert.Equal(t, []string{"anthropic"}, base.LLM.Order)

	// Zero values never clobber.
	assert.Equal(t, 120, base.Server.RequestsPerMinute)
	assert.Equal(t, "http://localhost:8081", base.Gateway.URL)
}

func TestMerge_Nil(t *testing.T) {
	cfg := Default()
	cfg.Merge(nil)
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Server.Addr = ":7777"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", loaded.Server.Addr)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAddr, ":6060")
	t.Setenv(EnvNATSURL, "nats://env:4222")
	t.Setenv(EnvRateLimit, "15")

	cfg := Default()
	applyEnv(cfg)

	assert.Equal(t, ":6060", cfg.Server.Addr)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Equal(t, 15, cfg.Server.RequestsPerMinute)
}

func TestApplyEnv_BadRateLimitIgnored(t *testing.T) {
	t.Setenv(EnvRateLimit, "lots")

	cfg := Default()
	applyEnv(cfg)
	assert.Equal(t, 120, cfg.Server.RequestsPerMinute)
}

func TestAPIKeys(t *testing.T) {
	t.Setenv(EnvAPIKeys, "k1:alice, k2:bob,broken,:nouser,nokey:")
	assert.Equal(t, map[string]string{"k1": "alice", "k2": "bob"}, APIKeys())

	t.Setenv(EnvAPIKeys, "")
	assert.Nil(t, APIKeys())

	t.Setenv(EnvAPIKeys, "garbage")
	assert.Nil(t, APIKeys())
}

func TestJWTSecret(t *testing.T) {
	t.Setenv(EnvJWTSecret, "s3cret")
	assert.Equal(t, "s3cret", JWTSecret())
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	l := NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, l.EnsureUserConfig())

	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	_, err := os.Stat(path)
	require.NoError(t, err)

	// A second call leaves the existing file alone.
	require.NoError(t, l.EnsureUserConfig())
}

func TestLoader_EnvOverridesFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvAddr, ":5555")

	userPath := filepath.Join(home, UserConfigDir, UserConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte("server:\n  addr: \":4444\"\n"), 0o644))

	l := NewLoader(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, ":5555", cfg.Server.Addr)
}
