package config

import (
	"bizdesk/internal/blob"
	"bizdesk/internal/core"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bizdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":5000", cfg.HTTP.Addr)
	assert.Equal(t, core.StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, blob.DriverFilesystem, cfg.Blob.Driver)
	assert.Equal(t, 5, cfg.Reminders.LeadDays)
	assert.False(t, cfg.Reminders.Enabled)
	assert.True(t, cfg.Seed)
	assert.Equal(t, "renias0101@gmail.com", cfg.Settings.EmailForNotifications)
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("BIZDESK_TEST_DSN", "postgres://app@db/bizdesk")
	path := writeConfig(t, `
http:
  addr: ":8080"
  session_ttl: 2h
storage:
  driver: postgres
  postgres_dsn: ${BIZDESK_TEST_DSN}
cascade:
  transitive: true
blob:
  driver: s3
  s3:
    bucket: exports
    endpoint: http://minio:9000
    path_style: true
mail:
  smtp_host: smtp.example.com
  timeout: 3s
reminders:
  enabled: true
  interval: 1h
seed: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Hour, cfg.HTTP.SessionTTL)
	assert.Equal(t, "postgres://app@db/bizdesk", cfg.Storage.PostgresDSN)
	assert.Equal(t, "exports", cfg.Blob.S3.Bucket)
	assert.True(t, cfg.Blob.S3.PathStyle)
	assert.Equal(t, "us-east-1", cfg.Blob.S3.Region)
	assert.Equal(t, "587", cfg.Mail.SMTPPort)
	assert.Equal(t, 3*time.Second, cfg.Mail.Timeout)
	assert.Equal(t, time.Hour, cfg.Reminders.Interval)
	assert.Equal(t, 5, cfg.Reminders.LeadDays)
	assert.False(t, cfg.Seed)

	storage := cfg.StorageOptions()
	assert.Equal(t, core.StoragePostgres, storage.Driver)
	assert.True(t, storage.TransitiveCascade)
	assert.Equal(t, blob.DriverS3, cfg.BlobOptions().Driver)
}

func TestLoadUsesEnvPathAndOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: sqlite\n  sqlite_path: /data/file.db\n")
	t.Setenv(EnvConfigPath, path)
	t.Setenv("BIZDESK_SQLITE_PATH", "/tmp/override.db")
	t.Setenv("BIZDESK_COOKIE_SECURE", "true")
	t.Setenv("BIZDESK_REMINDERS_LEAD_DAYS", "3")
	t.Setenv("BIZDESK_SESSION_TTL", "30m")
	t.Setenv("BIZDESK_NOTIFICATION_EMAIL", "ops@example.com")
	t.Setenv("BIZDESK_EXPORT_RETAIN", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, core.StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/override.db", cfg.Storage.SQLitePath)
	assert.True(t, cfg.HTTP.CookieSecure)
	assert.Equal(t, 3, cfg.Reminders.LeadDays)
	assert.Equal(t, 30*time.Minute, cfg.HTTP.SessionTTL)
	assert.Equal(t, "ops@example.com", cfg.Settings.EmailForNotifications)
	assert.Equal(t, 7, cfg.Blob.Retain)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	env := map[string]string{
		"BIZDESK_SEED":                "maybe",
		"BIZDESK_MAIL_TIMEOUT":        "soon",
		"BIZDESK_REMINDERS_LEAD_DAYS": "five",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BIZDESK_SEED")
	assert.Contains(t, err.Error(), "BIZDESK_MAIL_TIMEOUT")
	assert.Contains(t, err.Error(), "BIZDESK_REMINDERS_LEAD_DAYS")
	assert.True(t, cfg.Seed)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "mongo"
	cfg.Blob.Driver = blob.DriverS3
	cfg.Log.Format = "xml"
	cfg.HTTP.SessionTTL = 0
	cfg.Blob.Retain = -1
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"storage.driver", "blob.s3.bucket", "log.format", "session_ttl", "blob.retain"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}
