package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/loykin/procguard/internal/registry"
)

// Policy file format, one entry per line:
//
//	name=max_cpu_pct,max_mem_mb,restart_on_crash,max_restarts
//
// Lines starting with '#' and blank lines are skipped. A malformed line is
// dropped with a warning; it never aborts the whole load.

const policyTemplate = `# procguard monitored process policies
#
# One entry per line:
#   process_name=max_cpu_pct,max_mem_mb,restart_on_crash,max_restarts
#
# Example:
#   nginx=50,500,true,3
#   mysql=70,1000,true,5
`

// LoadPolicies reads the policy file at path. A missing file is a first-run
// condition: a commented template is written in its place and an empty
// policy set is returned.
func LoadPolicies(path string) (map[string]registry.Policy, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if werr := writeTemplate(path); werr != nil {
			return nil, fmt.Errorf("bootstrap policy file %s: %w", path, werr)
		}
		slog.Info("policy file not found, wrote template", "path", path)
		return map[string]registry.Policy{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open policy file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	policies := make(map[string]registry.Policy)
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		pol, err := parsePolicyLine(raw)
		if err != nil {
			slog.Warn("skipping malformed policy line", "path", path, "line", lineNo, "text", raw, "error", err)
			continue
		}
		if _, dup := policies[pol.Name]; dup {
			slog.Warn("duplicate policy name, last occurrence wins", "name", pol.Name, "line", lineNo)
		}
		policies[pol.Name] = pol
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}
	return policies, nil
}

func parsePolicyLine(line string) (registry.Policy, error) {
	name, rhs, ok := strings.Cut(line, "=")
	if !ok {
		return registry.Policy{}, fmt.Errorf("missing '='")
	}
	name = strings.TrimSpace(name)

	fields := strings.Split(rhs, ",")
	if len(fields) != 4 {
		return registry.Policy{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	maxCPU, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || maxCPU < 0 {
		return registry.Policy{}, fmt.Errorf("invalid max_cpu_pct %q", fields[0])
	}
	maxMem, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || maxMem < 0 {
		return registry.Policy{}, fmt.Errorf("invalid max_mem_mb %q", fields[1])
	}
	var restartOnCrash bool
	switch fields[2] {
	case "true":
		restartOnCrash = true
	case "false":
		restartOnCrash = false
	default:
		return registry.Policy{}, fmt.Errorf("restart_on_crash must be true or false, got %q", fields[2])
	}
	maxRestarts, err := strconv.Atoi(fields[3])
	if err != nil || maxRestarts < 0 {
		return registry.Policy{}, fmt.Errorf("invalid max_restarts %q", fields[3])
	}

	pol := registry.Policy{
		Name:           name,
		MaxCPUPercent:  maxCPU,
		MaxMemoryMB:    maxMem,
		RestartOnCrash: restartOnCrash,
		MaxRestarts:    maxRestarts,
	}
	if err := pol.Validate(); err != nil {
		return registry.Policy{}, err
	}
	return pol, nil
}

func writeTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(policyTemplate), 0o644)
}
