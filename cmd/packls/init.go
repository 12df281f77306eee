package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"packls/internal/config"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .packls.json into the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitCmd(opts, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func runInitCmd(opts *rootOptions, force bool) error {
	root, err := filepath.Abs(opts.workspace)
	if err != nil {
		return err
	}

	path := filepath.Join(root, ".packls.json")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	color.Green("Wrote %s", path)
	return nil
}
