package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Policy is the static, reload-replaced configuration for one monitored
// process. Instances are treated as immutable once loaded.
type Policy struct {
	Name           string  `json:"name" mapstructure:"name"`
	MaxCPUPercent  float64 `json:"max_cpu_pct" mapstructure:"max_cpu_pct"`
	MaxMemoryMB    float64 `json:"max_mem_mb" mapstructure:"max_mem_mb"`
	RestartOnCrash bool    `json:"restart_on_crash" mapstructure:"restart_on_crash"`
	MaxRestarts    int     `json:"max_restarts" mapstructure:"max_restarts"`
}

// Validate checks the structural constraints on a policy.
func (p Policy) Validate() error {
	if p.Name == "" {
		return errors.New("policy name must not be empty")
	}
	if strings.ContainsAny(p.Name, " \t") {
		return fmt.Errorf("policy name %q must not contain whitespace", p.Name)
	}
	if p.MaxCPUPercent < 0 || p.MaxMemoryMB < 0 {
		return fmt.Errorf("policy %q: thresholds must be non-negative", p.Name)
	}
	if p.MaxRestarts < 0 {
		return fmt.Errorf("policy %q: max_restarts must be non-negative", p.Name)
	}
	return nil
}

// State is the mutable runtime data for one monitored process. It is owned
// by the Registry; callers only ever see copies.
type State struct {
	RestartCount int       `json:"restart_count"`
	PID          int32     `json:"pid"`
	CPUPercent   float64   `json:"cpu_percent"`
	MemoryMB     float64   `json:"memory_mb"`
	Sampled      bool      `json:"sampled"`
	GaveUp       bool      `json:"gave_up"`
	LastChecked  time.Time `json:"last_checked"`
}

// Entry pairs a policy with its runtime state.
type Entry struct {
	Policy Policy `json:"policy"`
	State  State  `json:"state"`
}

// Registry maps process names to their policy and runtime state. It is the
// single writer of State: all mutation goes through its methods so the
// restart-count invariant (0 <= count <= max) cannot be violated elsewhere.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Reset replaces all entries with the given policy set. Restart counters are
// preserved for names present in both the old and new set; state for removed
// names is discarded. Counters above a shrunken max_restarts are clamped.
func (r *Registry) Reset(policies map[string]Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*Entry, len(policies))
	for name, pol := range policies {
		e := &Entry{Policy: pol}
		if old, ok := r.entries[name]; ok {
			e.State.RestartCount = old.State.RestartCount
			if e.State.RestartCount > pol.MaxRestarts {
				e.State.RestartCount = pol.MaxRestarts
			}
		}
		next[name] = e
	}
	r.entries = next
}

// Get returns a copy of the entry for name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Names returns the registered names sorted ascending. The order is stable
// for one call; callers must not rely on it across reloads.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Each calls fn with a copy of every entry, in sorted name order.
func (r *Registry) Each(fn func(name string, e Entry)) {
	for _, name := range r.Names() {
		if e, ok := r.Get(name); ok {
			fn(name, e)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RecordSample stores the result of a health check that found the process.
func (r *Registry) RecordSample(name string, pid int32, cpuPct, memMB float64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.State.PID = pid
	e.State.CPUPercent = cpuPct
	e.State.MemoryMB = memMB
	e.State.Sampled = true
	e.State.GaveUp = false
	e.State.LastChecked = at
}

// RecordMissing stores the result of a health check that found no process.
func (r *Registry) RecordMissing(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.State.PID = 0
	e.State.Sampled = false
	e.State.LastChecked = at
}

// IncRestarts increments the restart counter for name and reports whether
// the increment was applied. It refuses to move the counter past the
// policy's MaxRestarts.
func (r *Registry) IncRestarts(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	if e.State.RestartCount >= e.Policy.MaxRestarts {
		return false
	}
	e.State.RestartCount++
	return true
}

// MarkGaveUp records that the entry hit a terminal failure (no restart
// possible). Used to de-duplicate terminal alerts across poll cycles; the
// flag clears on the next successful sample or on Reset.
func (r *Registry) MarkGaveUp(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok || e.State.GaveUp {
		return false
	}
	e.State.GaveUp = true
	return true
}

// SnapshotEntries returns copies of all entries in sorted name order.
func (r *Registry) SnapshotEntries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		out = append(out, *r.entries[n])
	}
	return out
}
