package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.PollInterval != 10*time.Second || s.Listen != "127.0.0.1:9321" {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestLoadSettingsFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procguard.toml")
	content := `
policy_file = "/etc/procguard/procguard.policies"
poll_interval = "5s"
grace_period = "1s"
restart_command = "service {name} restart"
lock_file = "/run/procguard.lock"
listen = "127.0.0.1:9999"
watch_policy = true

[log]
level = "debug"
file = "/var/log/procguard.log"

[history]
enabled = true
dsn = ":memory:"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.PollInterval != 5*time.Second {
		t.Fatalf("poll_interval: %s", s.PollInterval)
	}
	if s.RestartCommand != "service {name} restart" {
		t.Fatalf("restart_command: %q", s.RestartCommand)
	}
	if !s.WatchPolicy || s.Listen != "127.0.0.1:9999" {
		t.Fatalf("settings not applied: %+v", s)
	}
	if s.Log.Level != "debug" || s.Log.File != "/var/log/procguard.log" {
		t.Fatalf("log settings not applied: %+v", s.Log)
	}
	if !s.History.Enabled || s.History.DSN != ":memory:" {
		t.Fatalf("history settings not applied: %+v", s.History)
	}
}

func TestLoadSettingsMissingExplicitPath(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatalf("explicit missing settings file must error")
	}
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("poll_interval = \"0s\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSettings(path); err == nil {
		t.Fatalf("zero poll_interval must be rejected")
	}
}
