//go:build !windows

package lock

import (
	"errors"
	"syscall"
)

// Alive reports whether a process with the given pid exists. EPERM still
// means the process is there, we just may not signal it.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
