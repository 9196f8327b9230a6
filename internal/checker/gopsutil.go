package checker

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/shirou/gopsutil/v4/process"
)

// PSChecker resolves names via gopsutil's process table. When several
// processes share a name, the lowest PID wins so repeated checks stay
// deterministic.
type PSChecker struct{}

var _ Checker = PSChecker{}

func (PSChecker) Check(name string) (Sample, bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return Sample{}, false, fmt.Errorf("%w: %v", ErrProcTable, err)
	}

	var matches []*process.Process
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			// Processes can exit between enumeration and inspection.
			continue
		}
		if pname == name {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return Sample{}, false, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Pid < matches[j].Pid })
	p := matches[0]

	s := Sample{PID: p.Pid}
	if cpu, err := p.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	} else {
		slog.Debug("cpu sample unavailable", "name", name, "pid", p.Pid, "error", err)
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		s.MemoryMB = float64(mem.RSS) / 1024 / 1024
	} else {
		slog.Debug("memory sample unavailable", "name", name, "pid", p.Pid, "error", err)
	}
	return s, true, nil
}
