// Package procguard is a process health monitoring and restart daemon. It
// watches a configured set of processes, restarts the ones that crash
// within a per-process budget, and alerts when CPU or memory thresholds are
// exceeded.
package procguard

import (
	"context"

	"github.com/loykin/procguard/internal/checker"
	cfg "github.com/loykin/procguard/internal/config"
	"github.com/loykin/procguard/internal/daemon"
	"github.com/loykin/procguard/internal/history"
	"github.com/loykin/procguard/internal/metrics"
	"github.com/loykin/procguard/internal/registry"
	"github.com/loykin/procguard/internal/restart"
	"github.com/loykin/procguard/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Settings = cfg.Settings

type HistoryConfig = cfg.HistoryConfig

type Policy = registry.Policy

type Sample = checker.Sample

type Checker = checker.Checker

type RestartAction = restart.Action

type HistorySink = history.Sink

type DaemonStatus = server.DaemonStatus

type ProcessStatus = server.ProcessStatus

type DaemonState = daemon.State

// DefaultSettings returns the built-in daemon configuration defaults.
func DefaultSettings() Settings { return cfg.DefaultSettings() }

// LoadSettings reads a TOML settings file; an empty path yields defaults.
func LoadSettings(path string) (Settings, error) { return cfg.LoadSettings(path) }

// LoadPolicies reads a policy file, bootstrapping a template on first run.
func LoadPolicies(path string) (map[string]Policy, error) { return cfg.LoadPolicies(path) }

// RegisterMetrics registers the monitoring collectors with r. Safe to call
// more than once.
func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }

// RegisterMetricsDefault registers the collectors with the default
// registerer.
func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }

// Daemon is a thin facade over internal/daemon.Daemon for embedding.
type Daemon struct{ inner *daemon.Daemon }

// Option customizes an embedded daemon.
type Option = daemon.Option

// WithChecker replaces the process-table checker.
func WithChecker(c Checker) Option { return daemon.WithChecker(c) }

// WithAction replaces the restart action.
func WithAction(a RestartAction) Option { return daemon.WithAction(a) }

// WithEvents attaches an event journal sink.
func WithEvents(s HistorySink) Option { return daemon.WithEvents(s) }

// New creates a daemon with the given settings.
func New(settings Settings, opts ...Option) *Daemon {
	return &Daemon{inner: daemon.New(settings, opts...)}
}

// Run executes the daemon until shutdown.
func (d *Daemon) Run(ctx context.Context) error { return d.inner.Run(ctx) }

// RequestReload asks the daemon to re-read its policy file.
func (d *Daemon) RequestReload() { d.inner.RequestReload() }

// RequestShutdown asks the daemon to stop.
func (d *Daemon) RequestShutdown() { d.inner.RequestShutdown() }

// State returns the current lifecycle state.
func (d *Daemon) State() DaemonState { return d.inner.State() }

// Status returns the latest published status snapshot.
func (d *Daemon) Status() DaemonStatus { return d.inner.Status() }
