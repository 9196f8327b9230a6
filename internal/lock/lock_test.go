package lock

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix-only test")
	}
}

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "procguard.lock")
}

func TestAcquireWritesOwnPID(t *testing.T) {
	g := &Guard{Path: lockPath(t)}
	if err := g.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer g.Release()

	pid, err := ReadOwner(g.Path)
	if err != nil {
		t.Fatalf("ReadOwner: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("lock owner %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireFailsWhenOwnerAlive(t *testing.T) {
	path := lockPath(t)
	// Our own PID is certainly alive.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g := &Guard{Path: path}
	err := g.Acquire()
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Acquire = %v, want ErrAlreadyRunning", err)
	}
	// The existing lock must be left untouched.
	pid, rerr := ReadOwner(path)
	if rerr != nil || pid != os.Getpid() {
		t.Fatalf("existing lock altered: pid=%d err=%v", pid, rerr)
	}
}

func TestAcquireReplacesStaleLock(t *testing.T) {
	requireUnix(t)
	path := lockPath(t)
	// PID far above any default pid_max: kill(2) reports ESRCH.
	if err := os.WriteFile(path, []byte("99999999\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g := &Guard{Path: path}
	if err := g.Acquire(); err != nil {
		t.Fatalf("stale lock must be replaced: %v", err)
	}
	defer g.Release()
	pid, err := ReadOwner(path)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("lock not taken over: pid=%d err=%v", pid, err)
	}
}

func TestAcquireReplacesGarbledLock(t *testing.T) {
	path := lockPath(t)
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g := &Guard{Path: path}
	if err := g.Acquire(); err != nil {
		t.Fatalf("garbled lock must be replaced: %v", err)
	}
	g.Release()
}

func TestReleaseRemovesLockAndIsIdempotent(t *testing.T) {
	g := &Guard{Path: lockPath(t)}
	if err := g.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	g.Release()
	if _, err := os.Stat(g.Path); !os.IsNotExist(err) {
		t.Fatalf("lock file still present after Release")
	}
	g.Release() // must not panic or log-fatal on a second call
}

func TestAliveSelfAndBogus(t *testing.T) {
	requireUnix(t)
	if !Alive(os.Getpid()) {
		t.Fatalf("own pid should be alive")
	}
	if Alive(0) || Alive(-1) || Alive(99999999) {
		t.Fatalf("bogus pids should not be alive")
	}
}
