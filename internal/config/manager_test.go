package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"timezone": "Europe/Bucharest",
		"logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
		"storage": {"driver": "sqlite", "path": "/tmp/tasks.db"},
		"notifications": {"backend": "polling", "sink": "console", "poll_interval": "15s"}
	}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Timezone != "Europe/Bucharest" {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "/tmp/tasks.db" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Notifications.PollInterval != "15s" {
		t.Fatalf("poll interval = %q", cfg.Notifications.PollInterval)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
timezone: UTC
logging:
  level: info
  console: true
  file:
    enabled: true
    path: /var/log/tasknag.log
storage:
  driver: postgres
  dsn: postgres://localhost/tasknag
notifications:
  backend: systemd
  sink: telegram
  telegram:
    token: abc
    chat_id: 42
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.DSN == "" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Notifications.Telegram == nil || cfg.Notifications.Telegram.ChatID != 42 {
		t.Fatalf("telegram sink = %+v", cfg.Notifications.Telegram)
	}
	if !cfg.Logging.File.Enabled {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"storge": {"driver": "sqlite"}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", "90s"); err != nil || d.Seconds() != 90 {
		t.Fatalf("got (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("expected error for junk duration")
	}
	if d, err := ParseDurationOrDefault("x", "", 5); err != nil || d != 5 {
		t.Fatalf("default: got (%v, %v)", d, err)
	}
}
