package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/clusterjoin/tokenbroker-go/internal/minter"
)

// Supervisor is the service-supervision primitive the renderer triggers
// after writing a changed configuration file. The broker only starts,
// enables, and restarts units; supervision itself lives outside it.
type Supervisor interface {
	Start(ctx context.Context, unit string) error
	Enable(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
}

// SystemdSupervisor drives systemd through systemctl.
type SystemdSupervisor struct {
	runner    minter.Runner
	systemctl string
}

// NewSystemdSupervisor creates a supervisor shelling out to systemctl via
// the given runner.
func NewSystemdSupervisor(runner minter.Runner) (*SystemdSupervisor, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	return &SystemdSupervisor{
		runner:    runner,
		systemctl: "systemctl",
	}, nil
}

func (s *SystemdSupervisor) Start(ctx context.Context, unit string) error {
	return s.run(ctx, "start", unit)
}

func (s *SystemdSupervisor) Enable(ctx context.Context, unit string) error {
	return s.run(ctx, "enable", unit)
}

func (s *SystemdSupervisor) Restart(ctx context.Context, unit string) error {
	return s.run(ctx, "restart", unit)
}

func (s *SystemdSupervisor) run(ctx context.Context, verb, unit string) error {
	if unit == "" {
		return fmt.Errorf("unit cannot be empty")
	}
	result, err := s.runner.Run(ctx, "", s.systemctl, verb, unit)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", verb, unit, err)
	}
	if result.ExitCode != 0 {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		return fmt.Errorf("systemctl %s %s failed (exit %d): %s", verb, unit, result.ExitCode, detail)
	}
	return nil
}

// NoopSupervisor satisfies Supervisor without touching any service manager.
// Used for dry runs and tests.
type NoopSupervisor struct{}

func (NoopSupervisor) Start(ctx context.Context, unit string) error {
	log.Printf("supervisor: would start %s", unit)
	return nil
}

func (NoopSupervisor) Enable(ctx context.Context, unit string) error {
	log.Printf("supervisor: would enable %s", unit)
	return nil
}

func (NoopSupervisor) Restart(ctx context.Context, unit string) error {
	log.Printf("supervisor: would restart %s", unit)
	return nil
}
