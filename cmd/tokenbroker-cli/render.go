package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clusterjoin/tokenbroker-go/internal/minter"
	"github.com/clusterjoin/tokenbroker-go/internal/render"
	"github.com/clusterjoin/tokenbroker-go/internal/service"
)

func newRenderCommand() *cobra.Command {
	var (
		templatePath string
		destPath     string
		unit         string
		dryRun       bool
		all          bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render token-bearing configuration templates",
		Long: `Render configuration templates that pull a join token through the oracle.
Templates use {{ nodeAuthToken "<target>" "<match>" }} to reference the token.
With --all the render entries from the agent config are applied; otherwise
--template and --dest select a single file. A failed token fetch fails the
render and leaves the destination untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(templatePath, destPath, unit, dryRun, all)
		},
	}

	cmd.Flags().StringVar(&templatePath, "template", "", "Template file to render")
	cmd.Flags().StringVar(&destPath, "dest", "", "Destination file to write")
	cmd.Flags().StringVar(&unit, "unit", "", "Service unit to restart when the file changed")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not restart services")
	cmd.Flags().BoolVar(&all, "all", false, "Apply every render entry from the agent config")

	return cmd
}

func runRender(templatePath, destPath, unit string, dryRun, all bool) error {
	if !all && (templatePath == "" || destPath == "") {
		return fmt.Errorf("either --all or both --template and --dest are required")
	}

	oracle, err := buildOracle()
	if err != nil {
		return err
	}

	var sup service.Supervisor = service.NoopSupervisor{}
	if !dryRun {
		sup, err = service.NewSystemdSupervisor(minter.ExecRunner{})
		if err != nil {
			return err
		}
	}

	renderer, err := render.New(oracle, sup)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entries := []render.Entry{{TemplatePath: templatePath, DestPath: destPath, Unit: unit}}
	if all {
		entries = entries[:0]
		for _, e := range config.Renders {
			entries = append(entries, render.Entry{TemplatePath: e.Template, DestPath: e.Dest, Unit: e.Unit})
		}
	}
	if len(entries) == 0 {
		fmt.Println("No render entries configured.")
		return nil
	}

	for _, entry := range entries {
		changed, err := renderer.Apply(ctx, entry)
		if err != nil {
			return fmt.Errorf("render %s: %w", entry.DestPath, err)
		}
		if changed {
			fmt.Printf("✅ %s updated\n", entry.DestPath)
		} else {
			fmt.Printf("%s unchanged\n", entry.DestPath)
		}
	}
	return nil
}
