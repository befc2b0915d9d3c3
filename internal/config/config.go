package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/claude/liftlog/internal/kv"
	"github.com/claude/liftlog/internal/storage"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Substrates for the key-value store under the local backend.
const (
	SubstrateMemory = "memory"
	SubstrateSQLite = "sqlite"
)

type StorageConfig struct {
	Backend   string `yaml:"backend"`
	Substrate string `yaml:"substrate"`
	Path      string `yaml:"path"`
	// QuotaBytes caps the store size; 0 means unlimited.
	QuotaBytes int `yaml:"quota_bytes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenStore opens the configured key-value substrate.
func (c StorageConfig) OpenStore() (kv.Store, error) {
	quota := kv.WithQuota(c.QuotaBytes)
	if c.Substrate == SubstrateMemory {
		return kv.NewMemory(quota), nil
	}
	store, err := kv.OpenSQLite(c.Path, quota)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return store, nil
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "127.0.0.1", Port: 8080},
		Storage:   StorageConfig{Backend: string(storage.KindLocalStorage), Substrate: SubstrateSQLite, Path: "data/liftlog.db", QuotaBytes: 5 << 20},
		Log:       LogConfig{Level: "info", Format: "text"},
		Tailscale: TailscaleConfig{Hostname: "liftlog", StateDir: "data/tsnet"},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. Env vars use the prefix LIFTLOG_:
//
//	LIFTLOG_SERVER_HOST, LIFTLOG_SERVER_PORT,
//	LIFTLOG_STORAGE_BACKEND, LIFTLOG_STORAGE_SUBSTRATE, LIFTLOG_STORAGE_PATH,
//	LIFTLOG_STORAGE_QUOTA_BYTES, LIFTLOG_LOG_LEVEL, LIFTLOG_LOG_FORMAT,
//	LIFTLOG_TAILSCALE_ENABLED, LIFTLOG_AUTH_API_KEY
//
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIFTLOG_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LIFTLOG_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LIFTLOG_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("LIFTLOG_STORAGE_SUBSTRATE"); v != "" {
		cfg.Storage.Substrate = v
	}
	if v := os.Getenv("LIFTLOG_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LIFTLOG_STORAGE_QUOTA_BYTES"); v != "" {
		if q, err := strconv.Atoi(v); err == nil {
			cfg.Storage.QuotaBytes = q
		}
	}
	if v := os.Getenv("LIFTLOG_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LIFTLOG_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LIFTLOG_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("LIFTLOG_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if _, err := storage.ParseKind(c.Storage.Backend); err != nil {
		return fmt.Errorf("storage.backend: %w", err)
	}
	switch c.Storage.Substrate {
	case SubstrateMemory:
	case SubstrateSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite substrate")
		}
	default:
		return fmt.Errorf("storage.substrate must be %q or %q, got %q", SubstrateMemory, SubstrateSQLite, c.Storage.Substrate)
	}
	if c.Storage.QuotaBytes < 0 {
		return fmt.Errorf("storage.quota_bytes must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
