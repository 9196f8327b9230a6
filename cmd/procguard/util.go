package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/loykin/procguard/internal/server"
)

// printStatus renders the daemon status as a table. When name is set, only
// that process row is printed; an unknown name is an error.
func printStatus(w io.Writer, st server.DaemonStatus, name string) error {
	fmt.Fprintf(w, "daemon: %s (pid %d)\n", st.State, st.PID)

	rows := st.Processes
	if name != "" {
		rows = nil
		for _, p := range st.Processes {
			if p.Name == name {
				rows = append(rows, p)
			}
		}
		if len(rows) == 0 {
			return fmt.Errorf("no monitored process named %q", name)
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no processes configured")
		return nil
	}

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPID\tSTATUS\tCPU%\tMAX_CPU%\tMEM(MB)\tMAX_MEM(MB)\tRESTARTS")
	for _, p := range rows {
		status := "down"
		pid := "-"
		cpu := "-"
		mem := "-"
		if p.Running {
			status = "up"
			pid = fmt.Sprintf("%d", p.PID)
			cpu = fmt.Sprintf("%.1f", p.CPUPercent)
			mem = fmt.Sprintf("%.1f", p.MemoryMB)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f\t%s\t%.1f\t%d/%d\n",
			p.Name, pid, status, cpu, p.MaxCPUPercent, mem, p.MaxMemoryMB,
			p.RestartCount, p.MaxRestarts)
	}
	return tw.Flush()
}
