package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageBackend)
	assert.Equal(t, 16, cfg.BlockCount)
	assert.Equal(t, 30, cfg.HistoryDefaultDays)
	assert.Equal(t, LockNone, cfg.ReconcileLock)
	assert.Equal(t, 10*time.Second, cfg.ReconcileLockTTL)
	assert.Equal(t, 5*time.Second, cfg.ReconcileLockTimeout)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assessment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage_backend: postgres
postgres_dsn: postgres://scores@localhost/scores?sslmode=disable
block_count: 12
history_default_days: 14
metrics_flush_interval: 30s
reconcile_lock_ttl: 20s
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HISTORY_DEFAULT_DAYS", "7")
	t.Setenv("RECONCILE_LOCK_TIMEOUT", "750ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.StorageBackend)
	assert.Equal(t, 12, cfg.BlockCount)
	assert.Equal(t, 7, cfg.HistoryDefaultDays)
	assert.Equal(t, 30*time.Second, cfg.MetricsFlushInterval)
	assert.Equal(t, 20*time.Second, cfg.ReconcileLockTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.ReconcileLockTimeout)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"production needs secret", func(c *Config) { c.Environment = "production" }, "JWT_SECRET"},
		{"postgres needs dsn", func(c *Config) { c.StorageBackend = StoragePostgres }, "POSTGRES_DSN"},
		{"dynamodb needs table", func(c *Config) { c.StorageBackend = StorageDynamoDB; c.DynamoDBTable = "" }, "DYNAMODB_TABLE"},
		{"dynamodb lock needs dynamodb", func(c *Config) { c.ReconcileLock = LockDynamoDB }, "RECONCILE_LOCK"},
		{"unknown backend", func(c *Config) { c.StorageBackend = "redis" }, "STORAGE_BACKEND"},
		{"events need bus", func(c *Config) { c.EnableEvents = true; c.EventBusName = "" }, "EVENT_BUS_NAME"},
		{"block count", func(c *Config) { c.BlockCount = 0 }, "BLOCK_COUNT"},
		{"lock ttl", func(c *Config) { c.ReconcileLockTTL = 0 }, "RECONCILE_LOCK_TTL"},
		{"lock timeout", func(c *Config) { c.ReconcileLockTimeout = -time.Second }, "RECONCILE_LOCK_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
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
