package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Audit.Driver)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9000
redis:
  addr: redis.internal:6379
judge:
  model: openai/gpt-4o
compaction:
  enabled: true
  interval: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "openai/gpt-4o", cfg.Judge.Model)
	assert.Equal(t, 30*time.Minute, cfg.Compaction.Interval)
	// Unset fields keep their defaults.
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7777")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("AUDIT_DATABASE_URL", "postgres://faq:faq@db/faq")
	t.Setenv("JUDGE_API_KEY", "secret")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "postgres", cfg.Audit.Driver)
	assert.Equal(t, "postgres://faq:faq@db/faq", cfg.Audit.Postgres.DSN)
	assert.Equal(t, "secret", cfg.Judge.APIKey)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"bad audit driver", func(c *Config) { c.Audit.Driver = "mysql" }},
		{"bad dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"compaction too frequent", func(c *Config) { c.Compaction.Interval = time.Second }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAuditDSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.Audit.SQLite.Path, cfg.AuditDSN())

	cfg.Audit.Driver = "postgres"
	cfg.Audit.Postgres.DSN = "postgres://localhost/faq"
	assert.Equal(t, "postgres://localhost/faq", cfg.AuditDSN())
}
