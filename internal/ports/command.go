package ports

import "context"

// CommandResult is the captured result of an external command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandRunner executes external commands such as the gh CLI.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}

// CommandCall records one invocation made through a CommandRunner.
type CommandCall struct {
	Command string
	Args    []string
}
