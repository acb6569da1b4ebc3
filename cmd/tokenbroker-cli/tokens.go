package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Outstanding invite token operations",
	}
	cmd.AddCommand(newTokensListCommand())
	return cmd
}

func newTokensListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List outstanding invite tokens on this auth node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokensList()
		},
	}
	return cmd
}

func runTokensList() error {
	m, err := buildMinter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tokens, err := m.TokensList(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	if len(tokens) == 0 {
		fmt.Println("No outstanding tokens.")
		return nil
	}
	for _, token := range tokens {
		fmt.Printf("%s  roles=%s  expires=%s\n", token.Token, strings.Join(token.Roles, ","), token.Expiry)
	}
	return nil
}
