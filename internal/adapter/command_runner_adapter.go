package adapter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	m "codesift.dev/pkg/codesift/internal/model"
)

// Command is an external command: an opaque shell string or an argv
// vector. Success is exit code 0.
type Command struct {
	Shell string   // run via the system shell when non-empty
	Argv  []string // run directly otherwise
}

// ShellCommand wraps a shell string.
func ShellCommand(command string) Command {
	return Command{Shell: command}
}

// ArgvCommand wraps an argument vector.
func ArgvCommand(args ...string) Command {
	return Command{Argv: args}
}

// IsZero reports whether no command was configured.
func (c Command) IsZero() bool {
	return c.Shell == "" && len(c.Argv) == 0
}

// String renders the command for logs and prompts.
func (c Command) String() string {
	if c.Shell != "" {
		return c.Shell
	}

	return strings.Join(c.Argv, " ")
}

// Append returns a copy of the command with extra arguments appended. For
// shell commands the arguments are joined onto the command line.
func (c Command) Append(args ...string) Command {
	if c.Shell != "" {
		return Command{Shell: strings.TrimSpace(c.Shell + " " + strings.Join(args, " "))}
	}

	argv := make([]string, 0, len(c.Argv)+len(args))
	argv = append(argv, c.Argv...)
	argv = append(argv, args...)

	return Command{Argv: argv}
}

// CommandRunnerAdapter abstracts external command execution for builds,
// cleanups and decompiler invocations.
type CommandRunnerAdapter interface {
	// Run executes the command in dir ("" means the current directory) and
	// returns the combined stdout/stderr output and any error.
	Run(ctx context.Context, dir m.Path, command Command) (output string, err error)
}

// LocalCommandRunnerAdapter provides a concrete implementation using os/exec.
type LocalCommandRunnerAdapter struct {
	timeout time.Duration
}

// NewLocalCommandRunnerAdapter constructs a runner without a timeout;
// build and decompile commands routinely run for minutes.
func NewLocalCommandRunnerAdapter() *LocalCommandRunnerAdapter {
	return &LocalCommandRunnerAdapter{}
}

// NewLocalCommandRunnerAdapterWithTimeout constructs a runner that kills
// commands exceeding timeout.
func NewLocalCommandRunnerAdapterWithTimeout(timeout time.Duration) *LocalCommandRunnerAdapter {
	return &LocalCommandRunnerAdapter{timeout: timeout}
}

// Run executes the command in dir with captured output.
func (a *LocalCommandRunnerAdapter) Run(ctx context.Context, dir m.Path, command Command) (string, error) {
	if command.IsZero() {
		return "", fmt.Errorf("no command to run")
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)

		defer cancel()
	}

	var cmd *exec.Cmd
	if command.Shell != "" {
		cmd = exec.CommandContext(ctx, "sh", "-c", command.Shell)
	} else {
		cmd = exec.CommandContext(ctx, command.Argv[0], command.Argv[1:]...)
	}
	cmd.Dir = string(dir)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String() + stderr.String()
	if err != nil {
		return output, fmt.Errorf("command %q: %w", command.String(), err)
	}

	return output, nil
}
