package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Node.Name != "kestrel" {
		t.Errorf("expected default node name 'kestrel', got %q", cfg.Node.Name)
	}
}

func TestLoadYAML(t *testing.T) {
	content := `
node:
  name: ledger-7
  environment: production
log:
  level: warn
runtime:
  mailbox_capacity: 64
ingest:
  address: ":9999"
`
	path := writeTempConfig(t, "kestrel.yaml", content)

	cfg, err := NewLoader().LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to load YAML config: %v", err)
	}

	if cfg.Node.Name != "ledger-7" {
		t.Errorf("expected node name 'ledger-7', got %q", cfg.Node.Name)
	}
	if cfg.Log.Level != LogLevelWarn {
		t.Errorf("expected log level warn, got %s", cfg.Log.Level)
	}
	if cfg.Runtime.MailboxCapacity != 64 {
		t.Errorf("expected mailbox capacity 64, got %d", cfg.Runtime.MailboxCapacity)
	}
	// Unset fields fall back to defaults.
	if cfg.Telemetry.Address != ":9480" {
		t.Errorf("expected default telemetry address, got %q", cfg.Telemetry.Address)
	}
}

func TestLoadTOML(t *testing.T) {
	content := `
[node]
name = "ledger-8"
environment = "staging"

[allocator]
endpoint = "http://allocator:8480"
`
	path := writeTempConfig(t, "kestrel.toml", content)

	cfg, err := NewLoader().LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to load TOML config: %v", err)
	}
	if cfg.Node.Name != "ledger-8" {
		t.Errorf("expected node name 'ledger-8', got %q", cfg.Node.Name)
	}
	if cfg.Allocator.Endpoint != "http://allocator:8480" {
		t.Errorf("unexpected allocator endpoint %q", cfg.Allocator.Endpoint)
	}
}

func TestLoadJSON(t *testing.T) {
	content := `{"node": {"name": "ledger-9", "environment": "testing"}}`
	path := writeTempConfig(t, "kestrel.json", content)

	cfg, err := NewLoader().LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to load JSON config: %v", err)
	}
	if cfg.Node.Name != "ledger-9" {
		t.Errorf("expected node name 'ledger-9', got %q", cfg.Node.Name)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeTempConfig(t, "kestrel.ini", "name=x")

	_, err := NewLoader().LoadFromFile(path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KESTREL_NODE_NAME", "from-env")
	t.Setenv("KESTREL_LOG_LEVEL", "debug")
	t.Setenv("KESTREL_SHUTDOWN_TIMEOUT", "42s")

	cfg, err := NewLoader().Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Node.Name != "from-env" {
		t.Errorf("expected env override for node name, got %q", cfg.Node.Name)
	}
	if cfg.Log.Level != LogLevelDebug {
		t.Errorf("expected env override for log level, got %s", cfg.Log.Level)
	}
	if cfg.Runtime.ShutdownTimeout != 42*time.Second {
		t.Errorf("expected env override for shutdown timeout, got %s", cfg.Runtime.ShutdownTimeout)
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty node name", func(c *Config) { c.Node.Name = "" }, ErrInvalidNodeName},
		{"bad environment", func(c *Config) { c.Node.Environment = "qa" }, ErrInvalidEnvironment},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, ErrInvalidLogLevel},
		{"zero mailbox", func(c *Config) { c.Runtime.MailboxCapacity = 0 }, ErrInvalidMailboxCapacity},
		{"no ingest address", func(c *Config) { c.Ingest.Address = "" }, ErrInvalidAddress},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAutoLoadFallsBackToDefaults(t *testing.T) {
	loader := NewLoader().SetSearchPaths([]string{t.TempDir()})

	cfg, err := loader.AutoLoad()
	if err != nil {
		t.Fatalf("auto load failed: %v", err)
	}
	if cfg.Node.Name != "kestrel" {
		t.Errorf("expected default config, got node name %q", cfg.Node.Name)
	}
}

func TestWatcherReload(t *testing.T) {
	path := writeTempConfig(t, "kestrel.yaml", "node:\n  name: before\n")

	watcher, err := NewWatcher(path, NewLoader())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if watcher.Config().Node.Name != "before" {
		t.Fatalf("unexpected initial config: %q", watcher.Config().Node.Name)
	}

	changed := make(chan *Config, 1)
	watcher.OnChange(func(oldConfig, newConfig *Config) {
		changed <- newConfig
	})

	if err := os.WriteFile(path, []byte("node:\n  name: after\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if err := watcher.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Node.Name != "after" {
			t.Errorf("expected reloaded name 'after', got %q", cfg.Node.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("change callback not invoked")
	}
}

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}
