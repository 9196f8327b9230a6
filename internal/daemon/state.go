package daemon

// State is the daemon-wide lifecycle value. All monitored data exists only
// while the state is not TERMINATED.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateReloading
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateReloading:
		return "RELOADING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// StateNames lists every lifecycle state, for the metrics gauge.
var StateNames = []string{"INIT", "RUNNING", "RELOADING", "SHUTTING_DOWN", "TERMINATED"}
