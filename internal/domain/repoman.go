package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codesift.dev/pkg/codesift/internal/adapter"
	m "codesift.dev/pkg/codesift/internal/model"
)

// ErrCleanup marks a cleanup command failure. Callers that already hold a
// produced dataset can detect it and keep the dataset.
var ErrCleanup = errors.New("cleanup failed")

// ErrAborted marks an interactive abort.
var ErrAborted = errors.New("aborted by operator")

// ErrorPolicy selects how a failing repository command is handled.
type ErrorPolicy string

const (
	// PolicyNone propagates the failure immediately.
	PolicyNone ErrorPolicy = "none"

	// PolicyIgnore logs the failure and continues.
	PolicyIgnore ErrorPolicy = "ignore"

	// PolicyInteractive asks the operator whether to retry, ignore or
	// abort. Retries are unbounded.
	PolicyInteractive ErrorPolicy = "interactive"
)

// Validate reports whether the policy is one of the known handlers.
func (p ErrorPolicy) Validate() error {
	switch p {
	case PolicyNone, PolicyIgnore, PolicyInteractive:
		return nil
	}

	return fmt.Errorf("unknown error handling policy: %q", p)
}

// RunFrom selects the working directory of repository commands.
type RunFrom string

const (
	// RunFromCwd runs commands from the caller's working directory.
	RunFromCwd RunFrom = "cwd"

	// RunFromRepo runs commands from the repository root, whether real or
	// a temporary copy.
	RunFromRepo RunFrom = "repo"
)

// Validate reports whether the location is one of the known choices.
func (r RunFrom) Validate() error {
	switch r {
	case RunFromCwd, RunFromRepo:
		return nil
	}

	return fmt.Errorf("unknown run-from location: %q", r)
}

// Prompter asks the operator to pick one of choices; fallback is the
// answer for empty input. Implementations live with the UI layer so the
// lifecycle stays scriptable in tests.
type Prompter interface {
	Choose(ctx context.Context, question string, choices []string, fallback string) (string, error)
}

const (
	choiceRetry  = "retry"
	choiceIgnore = "ignore"
	choiceAbort  = "abort"
)

const commandFailurePrompt = "A command error occurred. You can manually fix the issue and retry, " +
	"ignore the error to continue, or abort the process. How would you like to proceed?"

// ManageConfig shapes one managed build/cleanup cycle around the dataset
// pipeline.
type ManageConfig struct {
	// CleanupCommand optionally restores the repository after the
	// pipeline body ran.
	CleanupCommand adapter.Command

	// BuildErrorHandling is the policy for build failures.
	BuildErrorHandling ErrorPolicy

	// CleanupErrorHandling is the policy for cleanup failures.
	CleanupErrorHandling ErrorPolicy

	// RunFrom selects the working directory of both commands.
	RunFrom RunFrom

	// ExtraPaths are files or directories copied into the repository
	// before building, such as build scripts the repository itself does
	// not carry.
	ExtraPaths []m.Path
}

// DefaultManageConfig returns the managed-cycle defaults: build failures
// prompt the operator, cleanup failures are ignored, commands run from
// the caller's working directory.
func DefaultManageConfig() ManageConfig {
	return ManageConfig{
		BuildErrorHandling:   PolicyInteractive,
		CleanupErrorHandling: PolicyIgnore,
		RunFrom:              RunFromCwd,
	}
}

// Validate reports configuration errors before any command runs.
func (c ManageConfig) Validate() error {
	if err := c.BuildErrorHandling.Validate(); err != nil {
		return err
	}
	if err := c.CleanupErrorHandling.Validate(); err != nil {
		return err
	}

	return c.RunFrom.Validate()
}

// Manager runs repository build and cleanup commands around the dataset
// pipeline body.
type Manager struct {
	runner   adapter.CommandRunnerAdapter
	prompter Prompter
}

// NewManager constructs a lifecycle manager. prompter may be nil, in
// which case interactive policies degrade to propagation.
func NewManager(runner adapter.CommandRunnerAdapter, prompter Prompter) *Manager {
	return &Manager{runner: runner, prompter: prompter}
}

// Manage builds repo, runs body, then cleans up. A build failure that the
// policy does not swallow means body never runs. A body failure skips
// cleanup so the repository keeps the state the failure happened in.
// Cleanup failures that propagate are wrapped with ErrCleanup, because at
// that point body has already produced its result.
func (mg *Manager) Manage(ctx context.Context, repo m.Path, build adapter.Command, cfg ManageConfig, body func(ctx context.Context) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := m.Path("")
	if cfg.RunFrom == RunFromRepo {
		dir = repo
	}

	if err := mg.executeCommand(ctx, dir, build, cfg.BuildErrorHandling, "building repository"); err != nil {
		return err
	}

	if err := body(ctx); err != nil {
		return err
	}

	if !cfg.CleanupCommand.IsZero() {
		if err := mg.executeCommand(ctx, dir, cfg.CleanupCommand, cfg.CleanupErrorHandling, "cleaning up repository"); err != nil {
			return fmt.Errorf("%w: %w", ErrCleanup, err)
		}
	}

	return nil
}

// executeCommand runs command under the given failure policy. The
// interactive loop retries as often as the operator asks.
func (mg *Manager) executeCommand(ctx context.Context, dir m.Path, command adapter.Command, policy ErrorPolicy, task string) error {
	slog.Info(task, "command", command.String())

	for {
		output, err := mg.runner.Run(ctx, dir, command)
		if err == nil {
			slog.Info("command succeeded", "command", command.String())

			return nil
		}

		slog.Error("command failed", "command", command.String(), "error", err, "output", output)

		switch policy {
		case PolicyIgnore:
			return nil
		case PolicyInteractive:
			choice, promptErr := mg.choose(ctx)
			if promptErr != nil {
				slog.Warn("interactive prompt unavailable", "error", promptErr)

				return fmt.Errorf("%s: %w", task, err)
			}

			switch choice {
			case choiceRetry:
				continue
			case choiceIgnore:
				return nil
			default:
				return fmt.Errorf("%s: %w: %w", task, ErrAborted, err)
			}
		default:
			return fmt.Errorf("%s: %w", task, err)
		}
	}
}

func (mg *Manager) choose(ctx context.Context) (string, error) {
	if mg.prompter == nil {
		return "", fmt.Errorf("no prompter configured")
	}

	choice, err := mg.prompter.Choose(ctx, commandFailurePrompt, []string{choiceRetry, choiceIgnore, choiceAbort}, choiceRetry)
	if err != nil {
		return "", err
	}

	return strings.ToLower(strings.TrimSpace(choice)), nil
}
