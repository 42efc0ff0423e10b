// Package command runs external tools such as the gh CLI.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/felixgeelhaar/kostore/internal/ports"
)

// ErrNotInstalled is returned when the requested executable is not on PATH.
var ErrNotInstalled = errors.New("command not installed")

// RealRunner executes commands on the host.
type RealRunner struct {
	timeout time.Duration
}

// NewRealRunner creates a runner. A positive timeout bounds each command.
func NewRealRunner(timeout time.Duration) *RealRunner {
	return &RealRunner{timeout: timeout}
}

// Run executes command. A non-zero exit is reported through the result's
// ExitCode, not as an error.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return ports.CommandResult{}, fmt.Errorf("%w: %s", ErrNotInstalled, command)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	result := ports.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s: %w", command, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("%s: %w", command, err)
	}
	return result, nil
}

var _ ports.CommandRunner = (*RealRunner)(nil)
