package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newNodesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Registered node operations",
	}
	cmd.AddCommand(newNodesListCommand())
	return cmd
}

func newNodesListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List nodes registered with this auth node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodesList()
		},
	}
	return cmd
}

func runNodesList() error {
	m, err := buildMinter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	nodes, err := m.NodesList(ctx)
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}

	if len(nodes) == 0 {
		fmt.Println("No registered nodes.")
		return nil
	}
	for _, node := range nodes {
		line := fmt.Sprintf("%s  %s  %s", node.Hostname, node.ID, node.Address)
		if len(node.Labels) > 0 {
			line += "  " + strings.Join(node.Labels, ",")
		}
		fmt.Println(line)
	}
	return nil
}
