package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
server:
  host: "0.0.0.0"
  port: 9090
storage:
  backend: localStorage
  substrate: sqlite
  path: "/var/lib/liftlog/liftlog.db"
  quota_bytes: 1048576
log:
  level: debug
  format: json
tailscale:
  enabled: true
  hostname: "gym"
auth:
  api_key: "test-key-123"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.Path != "/var/lib/liftlog/liftlog.db" {
		t.Errorf("storage.path = %q", cfg.Storage.Path)
	}
	if cfg.Storage.QuotaBytes != 1<<20 {
		t.Errorf("storage.quota_bytes = %d, want %d", cfg.Storage.QuotaBytes, 1<<20)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if !cfg.Tailscale.Enabled || cfg.Tailscale.Hostname != "gym" {
		t.Errorf("tailscale = %+v", cfg.Tailscale)
	}
	// state_dir not in file: default kept
	if cfg.Tailscale.StateDir != "data/tsnet" {
		t.Errorf("tailscale.state_dir = %q, want default", cfg.Tailscale.StateDir)
	}
	if cfg.Auth.APIKey != "test-key-123" {
		t.Errorf("auth.api_key = %q, want %q", cfg.Auth.APIKey, "test-key-123")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "localStorage" || cfg.Storage.Substrate != SubstrateSQLite {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Storage.QuotaBytes != 5<<20 {
		t.Errorf("storage.quota_bytes = %d, want 5 MiB", cfg.Storage.QuotaBytes)
	}
	if cfg.Auth.APIKey != "" {
		t.Errorf("auth.api_key = %q, want empty", cfg.Auth.APIKey)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("LIFTLOG_SERVER_PORT", "9999")
	t.Setenv("LIFTLOG_STORAGE_SUBSTRATE", "memory")
	t.Setenv("LIFTLOG_STORAGE_QUOTA_BYTES", "0")
	t.Setenv("LIFTLOG_LOG_LEVEL", "warn")
	t.Setenv("LIFTLOG_TAILSCALE_ENABLED", "false")
	t.Setenv("LIFTLOG_AUTH_API_KEY", "env-key")

	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Storage.Substrate != SubstrateMemory {
		t.Errorf("storage.substrate = %q, want memory", cfg.Storage.Substrate)
	}
	if cfg.Storage.QuotaBytes != 0 {
		t.Errorf("storage.quota_bytes = %d, want 0", cfg.Storage.QuotaBytes)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Tailscale.Enabled {
		t.Error("tailscale.enabled should be overridden to false")
	}
	if cfg.Auth.APIKey != "env-key" {
		t.Errorf("auth.api_key = %q, want %q", cfg.Auth.APIKey, "env-key")
	}
	// Unchanged fields keep YAML values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing port", "server:\n  port: 0\n", "server.port"},
		{"unknown backend", "storage:\n  backend: floppy\n", "storage.backend"},
		{"unknown substrate", "storage:\n  substrate: redis\n", "storage.substrate"},
		{"sqlite without path", "storage:\n  substrate: sqlite\n  path: \"\"\n", "storage.path"},
		{"negative quota", "storage:\n  quota_bytes: -1\n", "quota_bytes"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"tailscale without hostname", "tailscale:\n  enabled: true\n  hostname: \"\"\n", "tailscale.hostname"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestReservedBackendsAreValidConfig(t *testing.T) {
	if _, err := Load(writeTemp(t, "storage:\n  backend: cloudSync\n")); err != nil {
		t.Errorf("cloudSync should load (it falls back at runtime): %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	log.Info("hidden")
	log.Warn("shown", "user_id", "u1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"user_id":"u1"`) {
		t.Errorf("json output = %s", out)
	}

	buf.Reset()
	LogConfig{Level: "info", Format: "text"}.NewLogger(&buf).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text output = %s", buf.String())
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	for _, sc := range []StorageConfig{
		{Substrate: SubstrateMemory, QuotaBytes: 64},
		{Substrate: SubstrateSQLite, Path: filepath.Join(t.TempDir(), "nested", "liftlog.db"), QuotaBytes: 64},
	} {
		store, err := sc.OpenStore()
		if err != nil {
			t.Fatalf("%s: OpenStore: %v", sc.Substrate, err)
		}
		if err := store.Set(ctx, "k", "v"); err != nil {
			t.Errorf("%s: Set: %v", sc.Substrate, err)
		}
		if err := store.Set(ctx, "big", strings.Repeat("x", 100)); err == nil {
			t.Errorf("%s: write over quota succeeded", sc.Substrate)
		}
		if err := store.Close(); err != nil {
			t.Errorf("%s: Close: %v", sc.Substrate, err)
		}
	}
}
