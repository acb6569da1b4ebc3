package minter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CmdResult captures the outcome of one command invocation.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts command execution so the tctl wrapper can be exercised in
// tests without a teleport installation.
type Runner interface {
	// Run executes the named command with args in the given working
	// directory and returns its captured output. A non-zero exit code is
	// reported through CmdResult, not through the error return.
	Run(ctx context.Context, dir, name string, args ...string) (*CmdResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command and captures stdout/stderr separately.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (*CmdResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &CmdResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return result, nil
}

// CommandError reports a command that ran but exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed (exit %d)", e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}
