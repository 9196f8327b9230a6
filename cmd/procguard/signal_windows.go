//go:build windows

package main

import (
	"fmt"
	"os"
)

func sendShutdownSignal(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// Windows has no SIGHUP; use the watch_policy setting or restart instead.
func sendReloadSignal(int) error {
	return fmt.Errorf("reload via signal is not supported on windows; enable watch_policy or restart the daemon")
}
