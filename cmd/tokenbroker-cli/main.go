package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/clusterjoin/tokenbroker-go/internal/agentconfig"
	"github.com/clusterjoin/tokenbroker-go/internal/discovery"
	"github.com/clusterjoin/tokenbroker-go/internal/minter"
	"github.com/clusterjoin/tokenbroker-go/internal/peerbus"
	"github.com/clusterjoin/tokenbroker-go/internal/tokenoracle"
)

var (
	// Global flags
	configPath string
	timeout    time.Duration

	// Loaded agent configuration, populated before every command runs
	config *agentconfig.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tokenbroker-cli",
		Short: "Cluster join-token broker command line interface",
		Long: `tokenbroker-cli manages cluster join tokens for the gateway service.
It can broker a token from auth peers over the configuration-management bus,
mint tokens locally on an auth node, render token-bearing config templates,
and administer teleport users.`,
		PersistentPreRunE: loadConfiguration,
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/tokenbroker/config.yaml", "Agent configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command timeout")

	// Add subcommands
	rootCmd.AddCommand(newTokenCommand())
	rootCmd.AddCommand(newMintCommand())
	rootCmd.AddCommand(newTokensCommand())
	rootCmd.AddCommand(newNodesCommand())
	rootCmd.AddCommand(newUsersCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfiguration reads the agent config before any command runs
func loadConfiguration(cmd *cobra.Command, args []string) error {
	// Skip config loading for commands that can run without it. The
	// version command loads it lazily only when asked for the teleport
	// version.
	if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Parent() == nil {
		return nil
	}

	loaded, err := agentconfig.Load(configPath)
	if err != nil {
		return err
	}
	config = loaded
	return nil
}

// buildMinter constructs the local tctl wrapper from the agent config
func buildMinter() (*minter.Minter, error) {
	minterConfig := &minter.Config{
		TctlPath:     config.TctlPath,
		DefaultRoles: config.Roles,
		DefaultTTL:   time.Duration(config.TTL),
	}
	return minter.New(minterConfig, minter.ExecRunner{})
}

// buildOracle constructs the token oracle over the HTTP peer bus
func buildOracle() (*tokenoracle.FileOracle, error) {
	secret, err := config.ResolveSecret()
	if err != nil {
		return nil, err
	}
	if config.RosterPath == "" {
		return nil, fmt.Errorf("roster must be configured to broker tokens from peers")
	}

	disc, err := discovery.NewFileDiscovery(config.RosterPath)
	if err != nil {
		return nil, err
	}

	busConfig := &peerbus.Config{
		NodeID:         config.NodeID,
		SecretKey:      secret,
		Grains:         config.Grains,
		RequestTimeout: time.Duration(config.RequestTimeout),
	}
	bus, err := peerbus.NewHTTPPeerBus(busConfig, disc)
	if err != nil {
		return nil, err
	}

	oracleConfig := &tokenoracle.Config{
		IdentityKeyPath: config.IdentityKeyPath,
		CacheTokenPath:  config.CacheTokenPath,
		Roles:           config.Roles,
		TTL:             time.Duration(config.TTL),
		SourceNode:      config.NodeID,
	}
	return tokenoracle.New(oracleConfig, bus)
}
