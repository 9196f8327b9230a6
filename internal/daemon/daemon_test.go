package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loykin/procguard/internal/checker"
	"github.com/loykin/procguard/internal/config"
	"github.com/loykin/procguard/internal/history"
	"github.com/loykin/procguard/internal/lock"
)

// fakeChecker serves a mutable process table. Safe for concurrent use; tests
// mutate it while the daemon loop reads it.
type fakeChecker struct {
	mu   sync.Mutex
	live map[string]checker.Sample
	err  error
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{live: make(map[string]checker.Sample)}
}

func (f *fakeChecker) Check(name string) (checker.Sample, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return checker.Sample{}, false, f.err
	}
	s, ok := f.live[name]
	return s, ok, nil
}

func (f *fakeChecker) set(name string, s checker.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[name] = s
}

func (f *fakeChecker) remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, name)
}

func (f *fakeChecker) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// reviveAction brings the process back in the fake table, simulating a
// successful restart command.
type reviveAction struct {
	chk *fakeChecker
	pid int32
}

func (a *reviveAction) Restart(_ context.Context, name string) error {
	a.chk.set(name, checker.Sample{PID: a.pid, CPUPercent: 1, MemoryMB: 10})
	return nil
}

// journalSink collects history events in memory.
type journalSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (j *journalSink) Send(_ context.Context, e history.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
	return nil
}

func (j *journalSink) Close() error { return nil }

func (j *journalSink) hasDetail(substr string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.events {
		if strings.Contains(e.Detail, substr) {
			return true
		}
	}
	return false
}

func testSettings(t *testing.T, policyLines string) config.Settings {
	t.Helper()
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "procguard.policies")
	if err := os.WriteFile(policyPath, []byte(policyLines), 0o644); err != nil {
		t.Fatalf("write policy file: %v", err)
	}
	s := config.DefaultSettings()
	s.PolicyFile = policyPath
	s.LockFile = filepath.Join(dir, "procguard.lock")
	s.PollInterval = 10 * time.Millisecond
	s.GracePeriod = 0
	s.Listen = "" // no HTTP listener in unit tests
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunAndShutdown(t *testing.T) {
	chk := newFakeChecker()
	chk.set("svc", checker.Sample{PID: 100, CPUPercent: 2, MemoryMB: 20})

	s := testSettings(t, "svc=50,500,true,3\n")
	d := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk, pid: 101}))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	waitFor(t, "RUNNING", func() bool { return d.State() == StateRunning })

	waitFor(t, "svc sampled", func() bool {
		st := d.Status()
		return len(st.Processes) == 1 && st.Processes[0].Running
	})
	st := d.Status()
	if st.Processes[0].Name != "svc" || st.Processes[0].PID != 100 {
		t.Fatalf("unexpected snapshot row: %+v", st.Processes[0])
	}

	d.RequestShutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after shutdown request")
	}
	if d.State() != StateTerminated {
		t.Fatalf("state after shutdown = %v, want TERMINATED", d.State())
	}
	if _, err := os.Stat(s.LockFile); !os.IsNotExist(err) {
		t.Fatalf("lock file still present after shutdown: %v", err)
	}
}

func TestCrashRestartConsumesBudget(t *testing.T) {
	chk := newFakeChecker()
	// svc absent at start; the first cycle should restart and confirm it.
	s := testSettings(t, "svc=50,500,true,3\n")
	d := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk, pid: 200}))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	waitFor(t, "restart confirmed", func() bool {
		st := d.Status()
		return len(st.Processes) == 1 && st.Processes[0].RestartCount == 1 && st.Processes[0].Running
	})

	d.RequestShutdown()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestReloadPreservesCounters(t *testing.T) {
	chk := newFakeChecker()
	s := testSettings(t, "svc=50,500,true,3\n")
	d := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk, pid: 300}))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	waitFor(t, "restart confirmed", func() bool {
		st := d.Status()
		return len(st.Processes) == 1 && st.Processes[0].RestartCount == 1
	})

	// New policy set keeps svc (higher ceiling) and adds web.
	newPolicies := "svc=80,800,true,5\nweb=50,500,false,2\n"
	if err := os.WriteFile(s.PolicyFile, []byte(newPolicies), 0o644); err != nil {
		t.Fatalf("rewrite policy file: %v", err)
	}
	chk.set("web", checker.Sample{PID: 400, CPUPercent: 1, MemoryMB: 5})
	d.RequestReload()

	waitFor(t, "reload applied", func() bool {
		st := d.Status()
		return len(st.Processes) == 2
	})
	st := d.Status()
	for _, p := range st.Processes {
		switch p.Name {
		case "svc":
			if p.RestartCount != 1 {
				t.Errorf("svc restart count after reload = %d, want 1", p.RestartCount)
			}
			if p.MaxRestarts != 5 || p.MaxCPUPercent != 80 {
				t.Errorf("svc policy not updated: %+v", p)
			}
		case "web":
			if p.RestartCount != 0 {
				t.Errorf("web restart count = %d, want 0", p.RestartCount)
			}
		default:
			t.Errorf("unexpected process %q", p.Name)
		}
	}

	d.RequestShutdown()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	chk := newFakeChecker()
	s := testSettings(t, "")
	first := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk}))

	done := make(chan error, 1)
	go func() { done <- first.Run(context.Background()) }()
	waitFor(t, "first instance RUNNING", func() bool { return first.State() == StateRunning })

	second := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk}))
	err := second.Run(context.Background())
	if !errors.Is(err, lock.ErrAlreadyRunning) {
		t.Fatalf("second Run error = %v, want ErrAlreadyRunning", err)
	}
	if second.State() != StateTerminated {
		t.Fatalf("second instance state = %v, want TERMINATED", second.State())
	}

	first.RequestShutdown()
	if err := <-done; err != nil {
		t.Fatalf("first Run returned %v", err)
	}
	if _, err := os.Stat(s.LockFile); !os.IsNotExist(err) {
		t.Fatal("lock file not released by first instance")
	}
}

func TestProcTableFailureIsFatal(t *testing.T) {
	chk := newFakeChecker()
	chk.set("svc", checker.Sample{PID: 100})

	s := testSettings(t, "svc=50,500,true,3\n")
	d := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk}))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	waitFor(t, "RUNNING", func() bool { return d.State() == StateRunning })

	chk.fail(checker.ErrProcTable)
	select {
	case err := <-done:
		if !errors.Is(err, checker.ErrProcTable) {
			t.Fatalf("Run returned %v, want ErrProcTable", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not exit on process table failure")
	}
	if d.State() != StateTerminated {
		t.Fatalf("state = %v, want TERMINATED", d.State())
	}
}

func TestShutdownNotLostBehindReloads(t *testing.T) {
	chk := newFakeChecker()
	chk.set("svc", checker.Sample{PID: 100, CPUPercent: 1, MemoryMB: 10})

	s := testSettings(t, "svc=50,500,false,0\n")
	d := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk}))

	// Queue a reload burst and then a shutdown before the loop starts. The
	// shutdown must survive the coalesced reloads and terminate the daemon.
	d.RequestReload()
	d.RequestReload()
	d.RequestShutdown()

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown request was lost behind queued reloads")
	}
	if d.State() != StateTerminated {
		t.Fatalf("state = %v, want TERMINATED", d.State())
	}
}

func TestReloadFailureJournaled(t *testing.T) {
	chk := newFakeChecker()
	chk.set("svc", checker.Sample{PID: 100, CPUPercent: 1, MemoryMB: 10})

	s := testSettings(t, "svc=50,500,false,0\n")
	sink := &journalSink{}
	d := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk}), WithEvents(sink))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	waitFor(t, "initial policy applied", func() bool { return len(d.Status().Processes) == 1 })

	// Turn the policy path into a directory so the reload read fails.
	if err := os.Remove(s.PolicyFile); err != nil {
		t.Fatalf("remove policy file: %v", err)
	}
	if err := os.Mkdir(s.PolicyFile, 0o755); err != nil {
		t.Fatalf("mkdir over policy path: %v", err)
	}
	d.RequestReload()

	waitFor(t, "failed reload journaled", func() bool {
		return sink.hasDetail("reload failed")
	})
	if st := d.Status(); len(st.Processes) != 1 || st.Processes[0].Name != "svc" {
		t.Fatalf("previous policy set not kept: %+v", st.Processes)
	}
	if sink.hasDetail("policy reload applied") {
		t.Fatal("failed reload must not be journaled as applied")
	}

	d.RequestShutdown()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestContextCancelStops(t *testing.T) {
	chk := newFakeChecker()
	s := testSettings(t, "")
	d := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	waitFor(t, "RUNNING", func() bool { return d.State() == StateRunning })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestWatchPolicyTriggersReload(t *testing.T) {
	chk := newFakeChecker()
	s := testSettings(t, "svc=50,500,false,0\n")
	s.WatchPolicy = true
	d := New(s, WithChecker(chk), WithAction(&reviveAction{chk: chk}))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()
	waitFor(t, "RUNNING", func() bool { return d.State() == StateRunning })
	waitFor(t, "initial policy applied", func() bool { return len(d.Status().Processes) == 1 })

	next := "svc=50,500,false,0\nweb=30,200,false,0\n"
	if err := os.WriteFile(s.PolicyFile, []byte(next), 0o644); err != nil {
		t.Fatalf("rewrite policy file: %v", err)
	}

	waitFor(t, "watcher-triggered reload", func() bool { return len(d.Status().Processes) == 2 })

	d.RequestShutdown()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}
