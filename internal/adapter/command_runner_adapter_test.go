package adapter

import (
	"context"
	"strings"
	"testing"
	"time"

	m "codesift.dev/pkg/codesift/internal/model"
)

func TestCommand_String(t *testing.T) {
	if got := ShellCommand("make all").String(); got != "make all" {
		t.Fatalf("String() = %q, want %q", got, "make all")
	}

	if got := ArgvCommand("make", "-j", "4").String(); got != "make -j 4" {
		t.Fatalf("String() = %q, want %q", got, "make -j 4")
	}

	if !(Command{}).IsZero() {
		t.Fatalf("IsZero() = false for the zero command")
	}

	if ShellCommand("make").IsZero() {
		t.Fatalf("IsZero() = true for a configured command")
	}
}

func TestCommand_Append(t *testing.T) {
	shell := ShellCommand("make build").Append("/repo")
	if shell.Shell != "make build /repo" {
		t.Fatalf("Append() shell = %q, want %q", shell.Shell, "make build /repo")
	}

	argv := ArgvCommand("make", "build").Append("/repo")
	if len(argv.Argv) != 3 || argv.Argv[2] != "/repo" {
		t.Fatalf("Append() argv = %v, want trailing /repo", argv.Argv)
	}
}

func TestLocalCommandRunnerAdapter_Run(t *testing.T) {
	t.Run("captures combined output", func(t *testing.T) {
		runner := NewLocalCommandRunnerAdapter()

		out, err := runner.Run(context.Background(), "", ShellCommand("echo out; echo err 1>&2"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if !strings.Contains(out, "out") || !strings.Contains(out, "err") {
			t.Fatalf("Run() output = %q, want both streams captured", out)
		}
	})

	t.Run("runs in the given directory", func(t *testing.T) {
		runner := NewLocalCommandRunnerAdapter()
		dir := t.TempDir()

		out, err := runner.Run(context.Background(), "/", ArgvCommand("pwd"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if strings.TrimSpace(out) != "/" {
			t.Fatalf("Run() in / printed %q", out)
		}

		out, err = runner.Run(context.Background(), m.Path(dir), ArgvCommand("pwd"))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if !strings.Contains(out, dir) {
			t.Fatalf("Run() in %s printed %q", dir, out)
		}
	})

	t.Run("failure includes the command", func(t *testing.T) {
		runner := NewLocalCommandRunnerAdapter()

		_, err := runner.Run(context.Background(), "", ShellCommand("exit 3"))
		if err == nil {
			t.Fatalf("Run() expected error for failing command")
		}

		if !strings.Contains(err.Error(), "exit 3") {
			t.Fatalf("Run() error %q does not mention the command", err)
		}
	})

	t.Run("zero command rejected", func(t *testing.T) {
		runner := NewLocalCommandRunnerAdapter()

		if _, err := runner.Run(context.Background(), "", Command{}); err == nil {
			t.Fatalf("Run() expected error for zero command")
		}
	})

	t.Run("timeout kills the command", func(t *testing.T) {
		runner := NewLocalCommandRunnerAdapterWithTimeout(100 * time.Millisecond)

		start := time.Now()
		_, err := runner.Run(context.Background(), "", ShellCommand("sleep 10"))
		if err == nil {
			t.Fatalf("Run() expected error for timed-out command")
		}

		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Fatalf("Run() took %v, timeout did not apply", elapsed)
		}
	})
}
