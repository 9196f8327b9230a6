// Package daemon runs the supervision loop: one logical thread of control
// that polls every registered process, applies the restart policy, and
// reacts to asynchronous control requests (shutdown, reload) between
// entries. Registry state has exactly one writer, the loop itself; status
// queries read an atomically published immutable snapshot.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/loykin/procguard/internal/checker"
	"github.com/loykin/procguard/internal/config"
	"github.com/loykin/procguard/internal/history"
	"github.com/loykin/procguard/internal/lock"
	"github.com/loykin/procguard/internal/metrics"
	"github.com/loykin/procguard/internal/registry"
	"github.com/loykin/procguard/internal/restart"
	"github.com/loykin/procguard/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

type request int

const (
	reqReload request = iota + 1
	reqShutdown
)

// Daemon supervises the configured process set until shut down.
type Daemon struct {
	settings config.Settings
	reg      *registry.Registry
	chk      checker.Checker
	act      restart.Action
	guard    *lock.Guard
	events   history.Sink
	ctl      *restart.Controller

	state atomic.Int32
	snap  atomic.Pointer[server.DaemonStatus]
	// One single-slot channel per request kind. Requests of one kind
	// coalesce; a burst of reloads can never crowd out a shutdown.
	reloadCh   chan struct{}
	shutdownCh chan struct{}
	srv        *server.Server
}

// Option overrides a collaborator, mainly for tests and embedding.
type Option func(*Daemon)

func WithChecker(c checker.Checker) Option { return func(d *Daemon) { d.chk = c } }
func WithAction(a restart.Action) Option   { return func(d *Daemon) { d.act = a } }
func WithEvents(s history.Sink) Option     { return func(d *Daemon) { d.events = s } }

func New(settings config.Settings, opts ...Option) *Daemon {
	d := &Daemon{
		settings:   settings,
		reg:        registry.New(),
		chk:        checker.PSChecker{},
		guard:      &lock.Guard{Path: settings.LockFile},
		reloadCh:   make(chan struct{}, 1),
		shutdownCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.act == nil {
		d.act = restart.CommandAction{
			Template: settings.RestartCommand,
			Timeout:  settings.RestartTimeout,
		}
	}
	d.setState(StateInit)
	return d
}

// State returns the current lifecycle state.
func (d *Daemon) State() State { return State(d.state.Load()) }

// Status returns the last published snapshot. It is answerable in every
// lifecycle state, including RELOADING.
func (d *Daemon) Status() server.DaemonStatus {
	if s := d.snap.Load(); s != nil {
		return *s
	}
	return server.DaemonStatus{State: d.State().String(), PID: os.Getpid()}
}

// RequestReload asks the daemon to reload its policy file. Safe from any
// goroutine; it only enqueues.
func (d *Daemon) RequestReload() {
	select {
	case d.reloadCh <- struct{}{}:
	default:
	}
}

// RequestShutdown asks the daemon to stop. Safe from any goroutine.
func (d *Daemon) RequestShutdown() {
	select {
	case d.shutdownCh <- struct{}{}:
	default:
	}
}

// Run executes the daemon until shutdown. The singleton lock is held for
// the whole lifetime and released on every exit path.
func (d *Daemon) Run(ctx context.Context) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		slog.Warn("metrics registration failed", "error", err)
	}

	if err := d.guard.Acquire(); err != nil {
		d.terminate("singleton acquisition failed", err)
		return err
	}
	defer d.guard.Release()

	policies, err := config.LoadPolicies(d.settings.PolicyFile)
	if err != nil {
		d.terminate("initial policy load failed", err)
		return err
	}
	d.reg.Reset(policies)

	if d.events == nil && d.settings.History.Enabled {
		sink, err := history.NewSQLite(d.settings.History.DSN)
		if err != nil {
			slog.Warn("event journal unavailable", "dsn", d.settings.History.DSN, "error", err)
		} else {
			d.events = sink
			defer func() { _ = sink.Close() }()
		}
	}
	d.ctl = restart.NewController(d.chk, d.act, d.settings.GracePeriod, d.events)

	if d.settings.Listen != "" {
		d.srv = server.New(d.settings.Listen, d.Status)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = d.srv.Shutdown(sctx)
		}()
	}

	if d.settings.WatchPolicy {
		stop, err := d.watchPolicyFile()
		if err != nil {
			slog.Warn("policy file watch unavailable", "error", err)
		} else {
			defer stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, notifySignals()...)
	defer signal.Stop(sigCh)

	d.setState(StateRunning)
	d.publish()
	slog.Info("daemon running",
		"pid", os.Getpid(),
		"processes", d.reg.Len(),
		"poll_interval", d.settings.PollInterval,
		"lock", d.settings.LockFile)

	for {
		// One poll cycle. Control requests are honored between entries so
		// shutdown latency is bounded by a single health check, not a full
		// cycle.
		names := d.reg.Names()
		for _, name := range names {
			switch d.pending(sigCh) {
			case reqShutdown:
				d.terminate("shutdown requested", nil)
				return nil
			case reqReload:
				d.reload()
				// Entry list is stale after a reload; start a fresh cycle.
				goto wait
			}

			if err := d.checkOne(ctx, name); err != nil {
				d.terminate("unrecoverable runtime error", err)
				return err
			}
			d.publish()
		}

	wait:
		select {
		case <-ctx.Done():
			d.terminate("context canceled", nil)
			return nil
		case <-d.shutdownCh:
			d.terminate("shutdown requested", nil)
			return nil
		case sig := <-sigCh:
			if mapSignal(sig) == reqShutdown {
				d.terminate("received signal "+sig.String(), nil)
				return nil
			}
			d.reload()
		case <-d.reloadCh:
			d.reload()
		case <-time.After(d.settings.PollInterval):
		}
	}
}

// pending drains one control request without blocking. Shutdown is checked
// first so it wins over any queued reload.
func (d *Daemon) pending(sigCh chan os.Signal) request {
	select {
	case <-d.shutdownCh:
		return reqShutdown
	default:
	}
	select {
	case sig := <-sigCh:
		return mapSignal(sig)
	case <-d.reloadCh:
		return reqReload
	default:
		return 0
	}
}

// checkOne runs the health check and policy for a single entry. Only a
// process-table enumeration failure is returned; anything else is handled
// in place.
func (d *Daemon) checkOne(ctx context.Context, name string) error {
	s, found, err := d.chk.Check(name)
	if err != nil {
		if errors.Is(err, checker.ErrProcTable) {
			return err
		}
		slog.Warn("health check failed", "name", name, "error", err)
		return nil
	}
	return d.ctl.Apply(ctx, d.reg, name, s, found)
}

// reload replaces the policy set, preserving restart counters by name. The
// poll loop pauses only for the duration of the file read.
func (d *Daemon) reload() {
	d.setState(StateReloading)
	d.publish()
	slog.Info("reloading policy file", "path", d.settings.PolicyFile)

	policies, err := config.LoadPolicies(d.settings.PolicyFile)
	detail := "RELOADING -> RUNNING: policy reload applied"
	if err != nil {
		// Keep the previous policy set; a reload must not kill a healthy
		// daemon.
		slog.Error("policy reload failed, keeping previous set", "error", err)
		detail = "RELOADING -> RUNNING: reload failed, previous policy set kept: " + err.Error()
	} else {
		d.reg.Reset(policies)
		slog.Info("policy reload complete", "processes", d.reg.Len())
	}
	history.Record(context.Background(), d.events, history.Event{
		Type: history.EventTransition, Detail: detail,
	})
	d.setState(StateRunning)
	d.publish()
}

// terminate drives the daemon into TERMINATED, always logging the cause
// first. Lock release and server shutdown run in Run's defers.
func (d *Daemon) terminate(cause string, err error) {
	if d.State() != StateInit {
		d.setState(StateShuttingDown)
		d.publish()
	}
	if err != nil {
		slog.Error("daemon terminating", "cause", cause, "error", err)
	} else {
		slog.Info("daemon terminating", "cause", cause)
	}
	history.Record(context.Background(), d.events, history.Event{
		Type: history.EventTransition, Detail: "-> TERMINATED: " + cause,
	})
	d.setState(StateTerminated)
	d.publish()
}

func (d *Daemon) setState(s State) {
	d.state.Store(int32(s))
	metrics.SetDaemonState(s.String(), StateNames)
}

// publish stores a fresh immutable status snapshot for readers.
func (d *Daemon) publish() {
	entries := d.reg.SnapshotEntries()
	st := &server.DaemonStatus{
		State:     d.State().String(),
		PID:       os.Getpid(),
		UpdatedAt: time.Now(),
		Processes: make([]server.ProcessStatus, 0, len(entries)),
	}
	for _, e := range entries {
		st.Processes = append(st.Processes, server.ProcessStatus{
			Name:           e.Policy.Name,
			PID:            e.State.PID,
			Running:        e.State.Sampled,
			CPUPercent:     e.State.CPUPercent,
			MemoryMB:       e.State.MemoryMB,
			MaxCPUPercent:  e.Policy.MaxCPUPercent,
			MaxMemoryMB:    e.Policy.MaxMemoryMB,
			RestartOnCrash: e.Policy.RestartOnCrash,
			RestartCount:   e.State.RestartCount,
			MaxRestarts:    e.Policy.MaxRestarts,
			LastChecked:    e.State.LastChecked,
		})
	}
	d.snap.Store(st)
}
