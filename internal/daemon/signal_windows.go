//go:build windows

package daemon

import "os"

// Windows has no SIGHUP delivery; reload is only reachable through the
// policy-file watcher or RequestReload.
func notifySignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func mapSignal(os.Signal) request { return reqShutdown }
