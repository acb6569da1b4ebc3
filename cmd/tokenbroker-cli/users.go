package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Teleport user operations",
	}
	cmd.AddCommand(newUsersAddCommand())
	cmd.AddCommand(newUsersRemoveCommand())
	cmd.AddCommand(newUsersListCommand())
	return cmd
}

func newUsersAddCommand() *cobra.Command {
	var logins []string

	cmd := &cobra.Command{
		Use:   "add <login>",
		Short: "Ensure a teleport user exists",
		Long: `Ensure a teleport user exists. Creating an already-present user is a
no-op, so the command is safe to re-run from configuration management.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersAdd(args[0], logins)
		},
	}

	cmd.Flags().StringSliceVar(&logins, "logins", nil, "Local logins the user may assume")
	return cmd
}

func runUsersAdd(login string, logins []string) error {
	m, err := buildMinter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := m.UserPresent(ctx, login, logins)
	if err != nil {
		return err
	}
	if report.Changed {
		fmt.Printf("✅ %s: %s\n", report.Name, report.Comment)
	} else {
		fmt.Printf("%s: %s\n", report.Name, report.Comment)
	}
	return nil
}

func newUsersRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <login>",
		Short: "Ensure a teleport user does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersRemove(args[0])
		},
	}
	return cmd
}

func runUsersRemove(login string) error {
	m, err := buildMinter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := m.UserAbsent(ctx, login)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", report.Name, report.Comment)
	return nil
}

func newUsersListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List teleport users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsersList()
		},
	}
	return cmd
}

func runUsersList() error {
	m, err := buildMinter()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	users, err := m.UsersList(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users.")
		return nil
	}
	for _, user := range users {
		fmt.Printf("%s  %s\n", user.Name, strings.Join(user.AllowedLogins, ","))
	}
	return nil
}
