package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clusterjoin/tokenbroker-go/pkg/peerbus"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Join-token operations",
	}
	cmd.AddCommand(newTokenGetCommand())
	return cmd
}

func newTokenGetCommand() *cobra.Command {
	var (
		target    string
		matchType string
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get the join token this node should use",
		Long: `Get the join token this node should use. Returns the cached token when it
is still valid, asks matching auth peers to mint a fresh one otherwise, and
prints nothing when the node is already registered and needs no token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenGet(target, matchType)
		},
	}

	cmd.Flags().StringVar(&target, "target", "role:auth-server", "Selector target expression")
	cmd.Flags().StringVar(&matchType, "match", "grain", "Selector match type (glob, grain, list)")

	return cmd
}

func runTokenGet(target, matchType string) error {
	mt, err := peerbus.ParseMatchType(matchType)
	if err != nil {
		return err
	}
	sel := peerbus.Selector{Target: target, MatchType: mt}

	oracle, err := buildOracle()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	token, err := oracle.NodeAuthToken(ctx, sel)
	if err != nil {
		return err
	}
	if token == "" {
		return nil // already registered, nothing to print
	}
	fmt.Println(token)
	return nil
}
