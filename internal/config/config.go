package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RUNQ_"

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the runtime configuration of runq.
type Config struct {
	// Database is the SQLite file holding the queue.
	Database string `yaml:"database" toml:"database" env:"DATABASE"`
	// KeepExecuted keeps finished and purged rows with a terminal status
	// instead of deleting them.
	KeepExecuted bool `yaml:"keep_executed" toml:"keep_executed" env:"KEEP_EXECUTED"`
	// AssetsDir is the root that unzip -asset resolves against.
	AssetsDir string `yaml:"assets_dir" toml:"assets_dir" env:"ASSETS_DIR"`
	// InboxDir is the spool directory watched by run. Empty disables it.
	InboxDir     string   `yaml:"inbox_dir" toml:"inbox_dir" env:"INBOX_DIR"`
	LogLevel     string   `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	LogFormat    string   `yaml:"log_format" toml:"log_format" env:"LOG_FORMAT"`
	OTelEndpoint string   `yaml:"otel_endpoint" toml:"otel_endpoint" env:"OTEL_ENDPOINT"`
	IdlePoll     Duration `yaml:"idle_poll" toml:"idle_poll" env:"IDLE_POLL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:  "runq.db",
		LogLevel:  "info",
		LogFormat: FormatText,
		IdlePoll:  Duration(10 * time.Millisecond),
	}
}

// Load builds a Config from defaults, then the file at path (if path is not
// empty), then RUNQ_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported extension (want .yaml, .yml or .toml)", path)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("config: database path is empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("config: unknown log_format %q (want text or json)", c.LogFormat)
	}
	if c.IdlePoll < 0 {
		return fmt.Errorf("config: idle_poll must not be negative, got %s", c.IdlePoll)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log_level %q", s)
	}
}

// Duration is a time.Duration written as a string ("250ms") in config files
// and the environment.
type Duration time.Duration

// String formats d like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML, TOML and env.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
