package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"packls/internal/checker"
	"packls/internal/commands"
	"packls/internal/config"
	"packls/internal/diagnostics"
	"packls/internal/events"
	"packls/internal/lsp"
	"packls/internal/pack"
	"packls/internal/queue"
	"packls/internal/store"
	"packls/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the language server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cfg, logger, err := opts.load()
	if err != nil {
		return err
	}

	pm := checker.NewProcessManager()
	bus := events.NewBus()
	defer bus.Close()

	runner := checker.NewRunner(pm, cfg.MaxOutputBytes)

	packs, err := pack.Scan(ctx, root)
	if err != nil {
		// A broken manifest must not keep the server from starting; the
		// checker will complain about it in its own words.
		logger.Warn("initial pack scan failed", "error", err)
	}
	graph := pack.NewGraph(packs)

	defs, err := store.NewSQLiteStore(ctx, filepath.Join(root, "tmp", "cache", "packls", "definitions.db"))
	if err != nil {
		logger.Warn("sqlite cache unavailable, falling back to memory", "error", err)
		defs, err = store.NewMemoryStore(ctx)
		if err != nil {
			return err
		}
	}
	defer defs.Close()

	collection := diagnostics.NewCollection(bus)
	q := queue.New(logger)

	// The checker re-reads configuration through the server so client
	// settings changes apply to the next run; until the server exists it
	// sees the file-loaded configuration.
	var srv *lsp.Server
	chk := checker.New(runner, func() *config.Config {
		if srv != nil {
			return srv.CurrentConfig()
		}
		return cfg
	}, root)

	refresher := store.NewRefresher(defs, chk, logger)

	srv = lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		WorkspaceRoot: root,
		Config:        cfg,
		Logger:        logger,
		Queue:         q,
		Checker:       chk,
		Collection:    collection,
		Bus:           bus,
		Graph:         graph,
		Definitions:   defs,
		Refresher:     refresher,
	})
	srv.SetDispatcher(commands.NewDispatcher(chk, graph, defs, srv.TriggerWorkspaceCheck, logger))

	watcher, err := pack.NewWatcher(root, graph, bus, logger, time.Duration(cfg.DebounceMS)*time.Millisecond)
	if err != nil {
		logger.Warn("file watcher unavailable", "error", err)
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("file watcher failed to start", "error", err)
		}
		defer watcher.Close()
	}

	logger.Info("packls serving", "workspace", root, "version", version.Version)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(ctx)
	}()

	select {
	case err = <-errChan:
	case <-ctx.Done():
		stop()
		logger.Info("shutdown signal received, cleaning up")
		err = nil
	}

	if kerr := pm.KillAll(); kerr != nil {
		logger.Warn("killing checker processes", "error", kerr)
	}

	if err != nil && !errors.Is(err, lsp.ErrExit) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
