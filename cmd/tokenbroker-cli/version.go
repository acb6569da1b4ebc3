package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clusterjoin/tokenbroker-go/internal/agentconfig"
)

const cliVersion = "0.1.0"

func newVersionCommand() *cobra.Command {
	var teleport bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show broker version (and optionally the local teleport version)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(teleport)
		},
	}

	cmd.Flags().BoolVar(&teleport, "teleport", false, "Also report the local teleport version via tctl")
	return cmd
}

func runVersion(teleport bool) error {
	fmt.Printf("tokenbroker-cli v%s\n", cliVersion)
	if !teleport {
		return nil
	}

	// The teleport lookup needs the tctl path from the agent config, which
	// the plain version command skips loading.
	if config == nil {
		loaded, err := agentconfig.Load(configPath)
		if err != nil {
			return err
		}
		config = loaded
	}

	m, err := buildMinter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	version, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get teleport version: %w", err)
	}
	fmt.Println(version)
	return nil
}
