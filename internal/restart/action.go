package restart

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Action revives one named process, typically by asking the host's service
// manager. Implementations must respect ctx for cancellation.
type Action interface {
	Restart(ctx context.Context, name string) error
}

// CommandAction runs a configurable command with {name} expanded to the
// process name. The command is built explicitly rather than eval'd, and a
// hung command is abandoned after Timeout.
type CommandAction struct {
	Template string        // e.g. "systemctl restart {name}"
	Timeout  time.Duration // 0 means no timeout
}

var _ Action = CommandAction{}

var safeName = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

func (a CommandAction) Restart(ctx context.Context, name string) error {
	if !safeName.MatchString(name) {
		return fmt.Errorf("refusing to expand unsafe process name %q", name)
	}
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	cmdStr := strings.ReplaceAll(a.Template, "{name}", name)
	cmd := buildShellAwareCommand(ctx, cmdStr)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("restart command timed out after %s: %q", a.Timeout, cmdStr)
		}
		return fmt.Errorf("restart command %q: %w", cmdStr, err)
	}
	return nil
}

// buildShellAwareCommand constructs the *exec.Cmd for a restart command.
// A shell is only involved when obvious shell metacharacters are present
// (G204 mitigation).
func buildShellAwareCommand(ctx context.Context, cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return getTrueCommand(ctx)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return getShellCommand(ctx, cmdStr)
	}
	parts := strings.Fields(cmdStr)
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.CommandContext(ctx, parts[0], args...)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, name string) error

func (f ActionFunc) Restart(ctx context.Context, name string) error { return f(ctx, name) }
