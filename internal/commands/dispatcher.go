// Package commands maps editor gestures to the fixed set of mutations the
// integration supports: adding a pack dependency, marking a constant
// public, and regenerating todo files. Mutations are fire-and-forget; each
// successful one re-triggers a check so the diagnostics catch up.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"packls/internal/checker"
	"packls/internal/pack"
	"packls/internal/store"
)

// Command identifiers exposed through workspace/executeCommand.
const (
	CmdAddDependency  = "packls.addDependency"
	CmdMakePublic     = "packls.makePublic"
	CmdUpdateTodo     = "packls.updateTodo"
	CmdCheckWorkspace = "packls.checkWorkspace"
)

// RecheckFunc re-triggers a whole-workspace check. Called after every
// successful mutation.
type RecheckFunc func()

// Dispatcher executes mutation commands.
type Dispatcher struct {
	checker *checker.Checker
	graph   *pack.Graph
	defs    store.Store
	recheck RecheckFunc
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. recheck may be nil (CLI use).
func NewDispatcher(chk *checker.Checker, graph *pack.Graph, defs store.Store, recheck RecheckFunc, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		checker: chk,
		graph:   graph,
		defs:    defs,
		recheck: recheck,
		logger:  logger,
	}
}

// AddDependency records definingPack in referencingPack's package.yml
// dependency list.
func (d *Dispatcher) AddDependency(ctx context.Context, referencingPack, definingPack string) error {
	p, ok := d.graph.Get(referencingPack)
	if !ok {
		return fmt.Errorf("unknown pack %q", referencingPack)
	}

	changed, err := addDependencyToManifest(p.ManifestPath(), definingPack)
	if err != nil {
		return fmt.Errorf("adding dependency %s -> %s: %w", referencingPack, definingPack, err)
	}
	if !changed {
		d.logger.Debug("dependency already declared",
			"referencing", referencingPack, "defining", definingPack)
		return nil
	}

	d.logger.Info("dependency added",
		"referencing", referencingPack, "defining", definingPack)
	d.triggerRecheck()
	return nil
}

// MakePublic inserts the public sigil line into the constant's defining
// file, located through the definitions cache.
func (d *Dispatcher) MakePublic(ctx context.Context, constant string) error {
	relPath, ok, err := d.defs.Lookup(ctx, constant)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", constant, err)
	}
	if !ok {
		return fmt.Errorf("no known definition for %s; refresh the definitions cache", constant)
	}

	if err := insertPublicSigil(d.checker.WorkDir(), relPath); err != nil {
		return fmt.Errorf("marking %s public: %w", constant, err)
	}

	d.logger.Info("constant marked public", "constant", constant, "file", relPath)
	d.triggerRecheck()
	return nil
}

// UpdateTodo regenerates todo files by running the checker's update-todo
// subcommand. files scopes the regeneration; empty means the whole
// workspace. Callers derive files from diagnostic metadata for the
// narrower scopes (single file, pack+constant, pack pair).
func (d *Dispatcher) UpdateTodo(ctx context.Context, files []string) error {
	if err := d.checker.UpdateTodo(ctx, files); err != nil {
		return fmt.Errorf("update-todo: %w", err)
	}

	d.logger.Info("todo files updated", "scope_files", len(files))
	d.triggerRecheck()
	return nil
}

func (d *Dispatcher) triggerRecheck() {
	if d.recheck != nil {
		d.recheck()
	}
}
