// Package checker resolves a process name against the OS process table and
// samples its resource usage. Absence of a match is an expected outcome, not
// an error; only a failure to read the process table itself is reported as
// one.
package checker

import "errors"

// ErrProcTable indicates the OS process table could not be enumerated at
// all. Callers treat it as an unrecoverable runtime error.
var ErrProcTable = errors.New("cannot read process table")

// Sample is one resource-usage observation of a live process.
type Sample struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}

// Checker samples the OS for one named process.
// Check must be side-effect free and safe to call repeatedly. found=false
// with a nil error means no process by that name exists right now.
type Checker interface {
	Check(name string) (s Sample, found bool, err error)
}
