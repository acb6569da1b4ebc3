package minter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Minter wraps the teleport admin tool (tctl) on an auth node. It is the
// minting side of the join-token handshake: peers publish a request and the
// auth node's agent answers by running "tctl nodes add" here.

// Config holds configuration for the Minter
type Config struct {
	// TctlPath is the teleport admin binary invoked for every operation.
	TctlPath string

	// WorkDir is the working directory commands run in.
	WorkDir string

	// DefaultRoles is the role set assigned when a token request names none.
	DefaultRoles string

	// DefaultTTL is the token lifetime used when a request names none.
	DefaultTTL time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TctlPath == "" {
		return errors.New("tctl path cannot be empty")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.WorkDir == "" {
		c.WorkDir = "/root"
	}
	if c.DefaultRoles == "" {
		c.DefaultRoles = "node"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 2 * time.Minute
	}
}

// Minter executes and parses tctl commands
type Minter struct {
	config *Config
	runner Runner
}

// New creates a Minter with the given configuration and runner
func New(config *Config, runner Runner) (*Minter, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configCopy := *config
	configCopy.SetDefaults()

	return &Minter{
		config: &configCopy,
		runner: runner,
	}, nil
}

// DefaultRoles returns the configured fallback role set.
func (m *Minter) DefaultRoles() string { return m.config.DefaultRoles }

// DefaultTTL returns the configured fallback token lifetime.
func (m *Minter) DefaultTTL() time.Duration { return m.config.DefaultTTL }

// Version returns the teleport version string reported by tctl.
func (m *Minter) Version(ctx context.Context) (string, error) {
	result, err := m.run(ctx, "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}

// run executes tctl with args and converts non-zero exits into CommandError.
func (m *Minter) run(ctx context.Context, args ...string) (*CmdResult, error) {
	result, err := m.runner.Run(ctx, m.config.WorkDir, m.config.TctlPath, args...)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		output := result.Stderr
		if output == "" {
			output = result.Stdout
		}
		return nil, &CommandError{
			Command:  m.config.TctlPath + " " + strings.Join(args, " "),
			ExitCode: result.ExitCode,
			Output:   output,
		}
	}
	return result, nil
}

// formatTTL renders a duration the way tctl expects it on the command line,
// dropping zero-valued trailing units ("2m0s" -> "2m", "1h0m0s" -> "1h").
// Only whole zero units are stripped so values like "30s" and "1m30s" pass
// through unchanged.
func formatTTL(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}
