package config

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7480", cfg.Addr)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 4, cfg.Notify.Workers)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
addr: 0.0.0.0:9000
database: memory://
max_body_bytes: 2048
read_timeout: 3s
notify:
  workers: 8
  write_timeout: 2s
`)
	t.Setenv("LISTSYNC_ADDR", "127.0.0.1:9100")
	t.Setenv("LISTSYNC_NOTIFY_QUEUE_SIZE", "16")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Addr)
	assert.Equal(t, "memory://", cfg.Database)
	assert.Equal(t, int64(2048), cfg.MaxBodyBytes)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 8, cfg.Notify.Workers)
	assert.Equal(t, 16, cfg.Notify.QueueSize)
	assert.Equal(t, 2*time.Second, cfg.Notify.WriteTimeout)
	// Untouched nested fields keep their defaults.
	assert.Equal(t, 32, cfg.Notify.SendBuffer)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Addr, cfg.Addr)
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(writeFile(t, "adress: typo\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv_InvalidValuesFallBack(t *testing.T) {
	env := map[string]string{
		"LISTSYNC_MAX_BODY_BYTES": "lots",
		"LISTSYNC_READ_TIMEOUT":   "soon",
		"LISTSYNC_NOTIFY_WORKERS": "  6 ",
	}
	var logs bytes.Buffer
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] }, slog.New(slog.NewTextHandler(&logs, nil)))

	assert.Equal(t, Default().MaxBodyBytes, cfg.MaxBodyBytes)
	assert.Equal(t, Default().ReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, 6, cfg.Notify.Workers)
	assert.Contains(t, logs.String(), "LISTSYNC_MAX_BODY_BYTES")
	assert.Contains(t, logs.String(), "LISTSYNC_READ_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty addr", mutate: func(c *Config) { c.Addr = " " }},
		{name: "empty database", mutate: func(c *Config) { c.Database = "" }},
		{name: "zero body limit", mutate: func(c *Config) { c.MaxBodyBytes = 0 }},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	cfg.LogFormat = "text"
	assert.NotNil(t, cfg.NewLogger(io.Discard))
}
