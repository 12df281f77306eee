package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"packls/internal/pack"
)

func newGraphCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print packs in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphCmd(opts)
		},
	}
}

func runGraphCmd(opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, _, _, err := opts.load()
	if err != nil {
		return err
	}

	packs, err := pack.Scan(ctx, root)
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		fmt.Println("No packs found.")
		return nil
	}

	g := pack.NewGraph(packs)
	order, err := g.Order()
	if err != nil {
		return err
	}

	for _, name := range order {
		p, ok := g.Get(name)
		if !ok {
			continue
		}
		line := color.CyanString(name)
		if len(p.Dependencies) > 0 {
			line += "  -> " + strings.Join(p.Dependencies, ", ")
		}
		if todos, err := pack.LoadTodo(p.TodoPath()); err == nil && len(todos) > 0 {
			line += color.YellowString("  (%d acknowledged)", len(todos))
		}
		fmt.Println(line)
	}

	missing := g.MissingDependencies()
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(os.Stderr)
		for _, name := range names {
			color.Yellow("warning: %s depends on unknown pack(s): %s",
				name, strings.Join(missing[name], ", "))
		}
	}
	return nil
}
