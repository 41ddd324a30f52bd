package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T) (*AppConfig, error) {
	t.Helper()
	v, err := InitConfig()
	require.NoError(t, err)
	return GetApplicationConfig(v)
}

func TestGetApplicationConfig_Defaults(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := loadConfig(t)
	require.NoError(t, err)

	assert.Equal(t, "speech-collector", cfg.Name)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes)
	assert.Equal(t, []string{".wav"}, cfg.Extensions())
	assert.Equal(t, 24*time.Hour, cfg.SubmissionTTL)
	assert.Equal(t, "", cfg.LedgerConfig.Driver)
	assert.False(t, cfg.RedisConfig.Enabled())
}

func TestGetApplicationConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PORT=8081\nDATASET_DIR=/srv/dataset\nAUDIO_EXTENSIONS=wav, .webm\nLEDGER__DRIVER=sqlite\nLEDGER__DSN=ledger.db\nREDIS__HOST=localhost\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("ENV_PATH", path)

	cfg, err := loadConfig(t)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "/srv/dataset", cfg.DatasetDir)
	assert.Equal(t, []string{".wav", ".webm"}, cfg.Extensions())
	assert.Equal(t, "sqlite", cfg.LedgerConfig.Driver)
	assert.Equal(t, "ledger.db", cfg.LedgerConfig.Dsn)
	assert.True(t, cfg.RedisConfig.Enabled())
	assert.Equal(t, 6379, cfg.RedisConfig.Port)
}

func TestGetApplicationConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("WRITE_CONCURRENCY", "9")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := loadConfig(t)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.WriteConcurrency)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}

func TestGetApplicationConfig_InvalidLedgerDriver(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("LEDGER__DRIVER", "mysql")
	t.Setenv("LEDGER__DSN", "x")

	_, err := loadConfig(t)
	assert.Error(t, err)
}

func TestGetApplicationConfig_LedgerNeedsDsn(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("LEDGER__DRIVER", "sqlite")

	_, err := loadConfig(t)
	assert.Error(t, err)
}

func TestGetApplicationConfig_Recorder(t *testing.T) {
	t.Setenv("ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := loadConfig(t)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.RecorderConfig.ServerUrl)
	assert.Equal(t, uint32(16000), cfg.RecorderConfig.SampleRate)
	assert.Equal(t, uint16(1), cfg.RecorderConfig.Channels)
	assert.False(t, cfg.RecorderConfig.Shuffle)

	t.Setenv("RECORDER__SERVER_URL", "not a url")
	_, err = loadConfig(t)
	assert.Error(t, err)

	t.Setenv("RECORDER__SERVER_URL", "https://collect.example.org")
	t.Setenv("RECORDER__SHUFFLE", "true")
	t.Setenv("RECORDER__DEVICE", "plughw:1,0")
	cfg, err = loadConfig(t)
	require.NoError(t, err)
	assert.Equal(t, "https://collect.example.org", cfg.RecorderConfig.ServerUrl)
	assert.True(t, cfg.RecorderConfig.Shuffle)
	assert.Equal(t, "plughw:1,0", cfg.RecorderConfig.Device)
}
