// Package execx runs external commands with timeouts and captured output.
//
// Mount tooling and platform probes all shell out; this package centralizes
// the exec plumbing so that timeouts surface as a distinct error kind and
// stderr always travels with the failure.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds command execution when the caller does not supply
// its own deadline.
const DefaultTimeout = 30 * time.Second

// TimeoutError indicates a command exceeded its deadline. Callers that need
// to distinguish a hang from a plain failure check for this type.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q timed out after %s", e.Command, e.Timeout)
}

// Runner executes commands. The zero value uses DefaultTimeout.
type Runner struct {
	// Timeout applies to every Run call without an earlier context
	// deadline. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Run executes name with args and returns stdout. Stderr is captured
// separately and included in error messages on failure.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (string, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, name, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	err := command.Run()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TimeoutError{
				Command: name + " " + strings.Join(args, " "),
				Timeout: timeout,
			}
		}
		return "", fmt.Errorf("%s %s: %w (stderr: %s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// LookPath reports the absolute path of an executable, or "" if it is not
// on PATH. Split out as a method so tests can fake tool presence.
func (r *Runner) LookPath(name string) string {
	path, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return path
}
