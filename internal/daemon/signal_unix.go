//go:build !windows

package daemon

import (
	"os"
	"syscall"
)

// notifySignals are the control signals the daemon subscribes to:
// SIGTERM/SIGINT request shutdown, SIGHUP requests a policy reload.
func notifySignals() []os.Signal {
	return []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP}
}

func mapSignal(sig os.Signal) request {
	if sig == syscall.SIGHUP {
		return reqReload
	}
	return reqShutdown
}
