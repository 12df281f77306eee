package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"packls/internal/checker"
	"packls/internal/config"
	"packls/internal/diagnostics"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		showAll bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Run a boundary check and print the violations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckCmd(opts, args, showAll, asJSON)
		},
	}
	cmd.Flags().BoolVar(&showAll, "all", false, "include recorded and strict-mode violations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON report")
	return cmd
}

func runCheckCmd(opts *rootOptions, args []string, showAll, asJSON bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	if showAll {
		cfg.ShowAll = true
	}

	pm := checker.NewProcessManager()
	defer pm.KillAll() //nolint:errcheck
	runner := checker.NewRunner(pm, cfg.MaxOutputBytes)
	chk := checker.New(runner, func() *config.Config { return cfg }, root)

	copts := checker.CheckOptions{IgnoreRecorded: cfg.ShowAll}
	if len(args) == 1 {
		copts.File = args[0]
	}

	logger.Debug("running check", "invocation", chk.CheckInvocation(copts).Args)

	proc, err := chk.StartCheck(ctx, copts)
	if err != nil {
		return err
	}
	out, runErr := proc.Wait()

	var exitErr *checker.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return runErr
	}

	result, err := checker.ParseCheckOutput(out.Stdout)
	if err != nil {
		if errors.Is(err, checker.ErrNoOutput) && exitErr != nil {
			return exitErr
		}
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	mode := diagnostics.ModeNew
	if cfg.ShowAll {
		mode = diagnostics.ModeAll
	}
	violations := diagnostics.Flatten(result, mode)
	if len(violations) == 0 {
		color.Green("No violations found.")
		return nil
	}

	for _, v := range violations {
		loc := v.File
		if v.HasPosition() {
			loc = fmt.Sprintf("%s:%d:%d", v.File, *v.Line, *v.Column)
		}
		kind := color.YellowString(v.Type)
		if v.Strict {
			kind = color.RedString(v.Type + " (strict)")
		}
		fmt.Printf("%s  %s\n  %s\n", color.CyanString(loc), kind, v.Message)
	}

	return fmt.Errorf("%d violation(s) found", len(violations))
}
