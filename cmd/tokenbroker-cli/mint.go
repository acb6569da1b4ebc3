package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newMintCommand() *cobra.Command {
	var (
		roles string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a join token locally with tctl",
		Long: `Mint a join token on this node by running tctl directly. This is the
operation auth nodes perform on behalf of peers; running it by hand is useful
for debugging and for pre-generating tokens.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMint(roles, ttl)
		},
	}

	cmd.Flags().StringVar(&roles, "roles", "", "Roles granted by the token (default from config)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default from config)")

	return cmd
}

func runMint(roles string, ttl time.Duration) error {
	m, err := buildMinter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	token, err := m.NodesAdd(ctx, roles, ttl)
	if err != nil {
		return fmt.Errorf("failed to mint token: %w", err)
	}

	fmt.Printf("✅ Token minted successfully!\n")
	fmt.Printf("Token: %s\n", token.Token)
	fmt.Printf("Expires: %s\n", token.Expires)
	if token.AuthServer != "" {
		fmt.Printf("Auth server: %s\n", token.AuthServer)
	}
	if token.Command != "" {
		fmt.Printf("Join command: %s\n", token.Command)
	}
	return nil
}
