package config

import (
	"fmt"
	"os"
	"time"

	"github.com/loykin/procguard/internal/logger"
	"github.com/spf13/viper"
)

// Settings is the daemon-level configuration, loaded from a TOML file.
// Per-process policies live in the separate plain-text policy file
// (see LoadPolicies); Settings only points at it.
type Settings struct {
	PolicyFile     string        `mapstructure:"policy_file"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	GracePeriod    time.Duration `mapstructure:"grace_period"`
	RestartTimeout time.Duration `mapstructure:"restart_timeout"`
	RestartCommand string        `mapstructure:"restart_command"` // {name} expands to the process name
	LockFile       string        `mapstructure:"lock_file"`
	Listen         string        `mapstructure:"listen"`
	WatchPolicy    bool          `mapstructure:"watch_policy"`
	Log            logger.Config `mapstructure:"log"`
	History        HistoryConfig `mapstructure:"history"`
}

// HistoryConfig configures the optional event journal.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"` // sqlite path or :memory:
}

// DefaultSettings returns the built-in defaults used when no config file is
// present or a key is unset.
func DefaultSettings() Settings {
	return Settings{
		PolicyFile:     "procguard.policies",
		PollInterval:   10 * time.Second,
		GracePeriod:    3 * time.Second,
		RestartTimeout: 30 * time.Second,
		RestartCommand: "systemctl restart {name}",
		LockFile:       "procguard.lock",
		Listen:         "127.0.0.1:9321",
		Log:            logger.Config{Level: "info", Color: true},
	}
}

// LoadSettings reads the TOML settings file at path. An empty path means
// defaults only. A missing file at an explicit path is an error; the policy
// file, by contrast, bootstraps itself on first run.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); err != nil {
		return s, fmt.Errorf("settings file %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return s, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", s.PollInterval)
	}
	if s.GracePeriod < 0 {
		return fmt.Errorf("grace_period must be non-negative, got %s", s.GracePeriod)
	}
	if s.PolicyFile == "" {
		return fmt.Errorf("policy_file must not be empty")
	}
	if s.LockFile == "" {
		return fmt.Errorf("lock_file must not be empty")
	}
	return nil
}
