package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HUDDLE_CONFIG_FILE", "API_ADDR", "DATABASE_URL", "HUDDLE_DB_MAX_CONNS", "HUDDLE_MIGRATIONS_DIR",
	"HUDDLE_HISTORY_DIR", "HUDDLE_CORS_ORIGIN", "HUDDLE_LOG_LEVEL", "MEILI_URL", "MEILI_MASTER_KEY",
	"REDIS_URL", "HUDDLE_CACHE_TTL_SECONDS", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
	"MINIO_BUCKET", "MINIO_REGION", "MINIO_USE_SSL", "HUDDLE_AVATAR_URL_TTL_SECONDS", "HUDDLE_SHORT_ID_SCAN_LIMIT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, time.Hour, cfg.AvatarURLTTL())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huddle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
redis_url: redis://cache:6379/1
cache_ttl_seconds: 30
minio_use_ssl: true
short_id_scan_limit: 50
`), 0o644))

	clearEnv(t)
	t.Setenv("HUDDLE_CONFIG_FILE", path)
	t.Setenv("API_ADDR", ":9100")
	t.Setenv("HUDDLE_SHORT_ID_SCAN_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr, "env wins over file")
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 50, cfg.ShortIDScanLimit, "bad env value keeps file value")
	assert.Equal(t, "./db/migrations", cfg.MigrationsDir, "unset keys keep defaults")
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unterminated"), 0o644))
	clearEnv(t)
	t.Setenv("HUDDLE_CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("HUDDLE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRejectsCacheOutlivingAvatarURLs(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("HUDDLE_CACHE_TTL_SECONDS", "7200")

	_, err := Load()
	assert.ErrorContains(t, err, "avatar url ttl")

	t.Setenv("MINIO_ENDPOINT", "")
	_, err = Load()
	assert.NoError(t, err, "without presigning nothing expires")
}
