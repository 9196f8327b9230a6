package lock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrAlreadyRunning reports that another live daemon owns the lock file.
// It is fatal at startup and non-retryable.
var ErrAlreadyRunning = errors.New("daemon already running")

// Guard enforces the one-daemon-per-host rule via a lock file holding the
// owning PID as plain text.
type Guard struct {
	Path string
}

// Acquire takes ownership of the lock file. A lock held by a live process
// fails with ErrAlreadyRunning; a stale lock (dead PID) is removed and
// replaced.
func (g *Guard) Acquire() error {
	if pid, err := ReadOwner(g.Path); err == nil {
		if Alive(pid) {
			return fmt.Errorf("%w (pid %d, lock %s)", ErrAlreadyRunning, pid, g.Path)
		}
		slog.Warn("removing stale lock file", "path", g.Path, "pid", pid)
		if err := os.Remove(g.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale lock %s: %w", g.Path, err)
		}
	} else if !os.IsNotExist(err) {
		// Unreadable or garbled lock file: treat as stale rather than
		// refusing to start forever.
		slog.Warn("replacing unreadable lock file", "path", g.Path, "error", err)
		if rmErr := os.Remove(g.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("remove lock %s: %w", g.Path, rmErr)
		}
	}

	if dir := filepath.Dir(g.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lock dir: %w", err)
		}
	}
	pid := os.Getpid()
	if err := os.WriteFile(g.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write lock %s: %w", g.Path, err)
	}
	return nil
}

// Release removes the lock file unconditionally. Safe to call on every
// shutdown path, including after a failed Acquire.
func (g *Guard) Release() {
	if err := os.Remove(g.Path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove lock file", "path", g.Path, "error", err)
	}
}

// ReadOwner returns the PID stored in the lock file at path.
func ReadOwner(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	first, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in lock file %s", path)
	}
	return pid, nil
}
