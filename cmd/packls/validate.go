package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"packls/internal/checker"
	"packls/internal/config"
	"packls/internal/pack"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the pack configuration (dependency cycles, malformed manifests)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateCmd(opts, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON report")
	return cmd
}

func runValidateCmd(opts *rootOptions, asJSON bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cfg, _, err := opts.load()
	if err != nil {
		return err
	}

	// Fail fast on an unreadable packwerk.yml before booting the checker's
	// Ruby environment; the checker would report the same thing seconds
	// later.
	if _, err := pack.LoadWorkspaceConfig(root); err != nil {
		return err
	}

	pm := checker.NewProcessManager()
	defer pm.KillAll() //nolint:errcheck
	runner := checker.NewRunner(pm, cfg.MaxOutputBytes)
	chk := checker.New(runner, func() *config.Config { return cfg }, root)

	result, err := chk.Validate(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if len(result.ValidationErrors) == 0 {
		color.Green("Pack configuration is valid.")
		return nil
	}

	for _, verr := range result.ValidationErrors {
		fmt.Printf("%s  %s\n", color.RedString(verr.ErrorType), verr.Message)
		for _, edge := range verr.CycleEdges {
			fmt.Printf("  %s -> %s", edge.FromPack, edge.ToPack)
			if edge.File != "" {
				fmt.Printf("  (%s)", color.CyanString(edge.File))
			}
			fmt.Println()
		}
	}

	return fmt.Errorf("%d validation error(s)", len(result.ValidationErrors))
}
