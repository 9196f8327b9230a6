//go:build windows

package lock

import "os"

// Alive reports whether a process with the given pid exists. On Windows
// FindProcess fails for nonexistent PIDs.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	defer func() { _ = p.Release() }()
	return true
}
