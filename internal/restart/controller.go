package restart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/procguard/internal/checker"
	"github.com/loykin/procguard/internal/history"
	"github.com/loykin/procguard/internal/metrics"
	"github.com/loykin/procguard/internal/registry"
)

// Controller applies the per-entry restart policy once per poll cycle.
// A restart only consumes budget when the grace-period re-check confirms the
// process came back; failed attempts are retried on later cycles until the
// budget is actually spent.
type Controller struct {
	checker checker.Checker
	action  Action
	grace   time.Duration
	events  history.Sink

	sleep func(time.Duration) // injectable for tests
}

func NewController(chk checker.Checker, act Action, grace time.Duration, events history.Sink) *Controller {
	return &Controller{
		checker: chk,
		action:  act,
		grace:   grace,
		events:  events,
		sleep:   time.Sleep,
	}
}

// Apply records the health-check result for one entry and takes the policy
// action it implies. It is the only mutator of registry state besides Reset,
// and runs on the daemon's main loop. The returned error is non-nil only for
// a process-table enumeration failure, which the caller treats as fatal.
func (c *Controller) Apply(ctx context.Context, reg *registry.Registry, name string, s checker.Sample, found bool) error {
	e, ok := reg.Get(name)
	if !ok {
		return nil
	}
	now := time.Now()

	if found {
		reg.RecordSample(name, s.PID, s.CPUPercent, s.MemoryMB, now)
		metrics.IncCheck(name, true)
		c.checkThresholds(ctx, e.Policy, s)
		return nil
	}

	reg.RecordMissing(name, now)
	metrics.IncCheck(name, false)

	pol := e.Policy
	if !pol.RestartOnCrash || e.State.RestartCount >= pol.MaxRestarts {
		c.giveUp(ctx, reg, name, e)
		return nil
	}

	slog.Warn("process missing, attempting restart",
		"name", name,
		"restart_count", e.State.RestartCount,
		"max_restarts", pol.MaxRestarts)

	if err := c.action.Restart(ctx, name); err != nil {
		// Treated identically to "still not found": logged, budget intact.
		slog.Error("restart action failed", "name", name, "error", err)
		metrics.IncRestart(name, false)
		history.Record(ctx, c.events, history.Event{
			OccurredAt: now, Type: history.EventRestart, Name: name,
			Detail: "restart action failed: " + err.Error(),
		})
		return nil
	}

	c.sleep(c.grace)

	s2, found2, err := c.checker.Check(name)
	if err != nil {
		slog.Error("re-check after restart failed", "name", name, "error", err)
		metrics.IncRestart(name, false)
		if errors.Is(err, checker.ErrProcTable) {
			// Table enumeration is unrecoverable; let the caller shut down
			// now instead of on the next cycle.
			return err
		}
		return nil
	}
	if !found2 {
		slog.Error("restart did not revive process", "name", name)
		metrics.IncRestart(name, false)
		history.Record(ctx, c.events, history.Event{
			OccurredAt: time.Now(), Type: history.EventRestart, Name: name,
			Detail: "restart attempt did not revive process",
		})
		return nil
	}

	reg.IncRestarts(name)
	reg.RecordSample(name, s2.PID, s2.CPUPercent, s2.MemoryMB, time.Now())
	after, _ := reg.Get(name)
	slog.Info("restart confirmed", "name", name, "pid", s2.PID,
		"restart_count", after.State.RestartCount, "max_restarts", pol.MaxRestarts)
	metrics.IncRestart(name, true)
	history.Record(ctx, c.events, history.Event{
		OccurredAt: time.Now(), Type: history.EventRestart, Name: name, PID: s2.PID,
		Detail: fmt.Sprintf("restart succeeded (%d/%d)", after.State.RestartCount, pol.MaxRestarts),
	})
	return nil
}

// giveUp emits the terminal failure alert for an entry that is down with no
// restart allowed. The alert fires once per outage, not once per cycle.
func (c *Controller) giveUp(ctx context.Context, reg *registry.Registry, name string, e registry.Entry) {
	if !reg.MarkGaveUp(name) {
		slog.Debug("process still down, restart exhausted or disabled", "name", name)
		return
	}
	reason := "restart_on_crash disabled"
	if e.Policy.RestartOnCrash {
		reason = fmt.Sprintf("restart budget exhausted (%d/%d)", e.State.RestartCount, e.Policy.MaxRestarts)
	}
	slog.Error("process down, no restart will be attempted", "name", name, "reason", reason)
	metrics.IncAlert(name, "down")
	history.Record(ctx, c.events, history.Event{
		OccurredAt: time.Now(), Type: history.EventAlert, Name: name,
		Detail: "process down, " + reason,
	})
}

// checkThresholds emits advisory alerts for samples strictly above the
// policy thresholds. Breaches never trigger restarts.
func (c *Controller) checkThresholds(ctx context.Context, pol registry.Policy, s checker.Sample) {
	if s.CPUPercent > pol.MaxCPUPercent {
		slog.Warn("cpu threshold breached", "name", pol.Name,
			"cpu_pct", s.CPUPercent, "max_cpu_pct", pol.MaxCPUPercent, "pid", s.PID)
		metrics.IncAlert(pol.Name, "cpu")
		history.Record(ctx, c.events, history.Event{
			OccurredAt: time.Now(), Type: history.EventAlert, Name: pol.Name, PID: s.PID,
			Detail: fmt.Sprintf("cpu %.1f > %.1f", s.CPUPercent, pol.MaxCPUPercent),
		})
	}
	if s.MemoryMB > pol.MaxMemoryMB {
		slog.Warn("memory threshold breached", "name", pol.Name,
			"memory_mb", s.MemoryMB, "max_mem_mb", pol.MaxMemoryMB, "pid", s.PID)
		metrics.IncAlert(pol.Name, "mem")
		history.Record(ctx, c.events, history.Event{
			OccurredAt: time.Now(), Type: history.EventAlert, Name: pol.Name, PID: s.PID,
			Detail: fmt.Sprintf("memory %.1fMB > %.1fMB", s.MemoryMB, pol.MaxMemoryMB),
		})
	}
}
