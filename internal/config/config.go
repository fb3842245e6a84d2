// Package config loads daemon settings from an optional YAML file and
// LISTSYNC_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/listsync/internal/notify"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LISTSYNC_"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds daemon settings.
type Config struct {
	Addr            string        `yaml:"addr"`
	Database        string        `yaml:"database"`
	TokenSecret     string        `yaml:"token_secret"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	Notify          notify.Config `yaml:"notify"`
}

// DefaultDatabase is the SQLite file used when none is configured.
func DefaultDatabase() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".listsync", "listsync.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:            "127.0.0.1:7480",
		Database:        DefaultDatabase(),
		MaxBodyBytes:    1 << 20,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
		Notify:          *notify.DefaultConfig(),
	}
}

// Load builds a config from defaults, the YAML file at path (skipped when
// path is empty) and the process environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv, slog.Default())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from LISTSYNC_* variables. Unparsable values are
// reported on logger and ignored.
func (c *Config) ApplyEnv(getenv func(string) string, logger *slog.Logger) {
	e := envReader{getenv: getenv, logger: logger}

	c.Addr = e.str("ADDR", c.Addr)
	c.Database = e.str("DATABASE", c.Database)
	c.TokenSecret = e.str("TOKEN_SECRET", c.TokenSecret)
	c.MaxBodyBytes = e.int64("MAX_BODY_BYTES", c.MaxBodyBytes)
	c.ReadTimeout = e.duration("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = e.duration("WRITE_TIMEOUT", c.WriteTimeout)
	c.ShutdownTimeout = e.duration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.LogLevel = e.str("LOG_LEVEL", c.LogLevel)
	c.LogFormat = e.str("LOG_FORMAT", c.LogFormat)
	c.Notify.Workers = e.int("NOTIFY_WORKERS", c.Notify.Workers)
	c.Notify.QueueSize = e.int("NOTIFY_QUEUE_SIZE", c.Notify.QueueSize)
	c.Notify.WriteTimeout = e.duration("NOTIFY_WRITE_TIMEOUT", c.Notify.WriteTimeout)
}

// Validate checks the config for values the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalid)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("%w: database is required", ErrInvalid)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalid)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// NewLogger builds the structured logger described by the config.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

type envReader struct {
	getenv func(string) string
	logger *slog.Logger
}

func (e envReader) raw(name string) (string, string) {
	key := EnvPrefix + name
	return key, strings.TrimSpace(e.getenv(key))
}

func (e envReader) str(name, fallback string) string {
	if _, raw := e.raw(name); raw != "" {
		return raw
	}
	return fallback
}

func (e envReader) int(name string, fallback int) int {
	key, raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		e.logger.Warn("invalid environment value, using fallback", "name", key, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}

func (e envReader) int64(name string, fallback int64) int64 {
	key, raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		e.logger.Warn("invalid environment value, using fallback", "name", key, "value", raw, "fallback", fallback)
		return fallback
	}
	return value
}

func (e envReader) duration(name string, fallback time.Duration) time.Duration {
	key, raw := e.raw(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		e.logger.Warn("invalid environment value, using fallback", "name", key, "value", raw, "fallback", fallback.String())
		return fallback
	}
	return value
}
