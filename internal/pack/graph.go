package pack

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// Graph is the dependency graph spanned by pack manifests. It gives local,
// checker-free answers for navigation and ordering; the checker's own
// validate command remains the authority on configuration validity.
type Graph struct {
	mu    sync.RWMutex
	packs map[string]*Pack
}

// NewGraph builds a graph from scanned packs.
func NewGraph(packs []*Pack) *Graph {
	g := &Graph{packs: make(map[string]*Pack, len(packs))}
	for _, p := range packs {
		g.packs[p.Name] = p
	}
	return g
}

// Replace swaps the graph contents wholesale. Used by the watcher after a
// rescan; partial patches would let a half-applied edit show a graph no
// manifest set ever described.
func (g *Graph) Replace(packs []*Pack) {
	fresh := make(map[string]*Pack, len(packs))
	for _, p := range packs {
		fresh[p.Name] = p
	}

	g.mu.Lock()
	g.packs = fresh
	g.mu.Unlock()
}

// Get returns a pack by name.
func (g *Graph) Get(name string) (*Pack, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.packs[name]
	return p, ok
}

// Packs returns all packs.
func (g *Graph) Packs() []*Pack {
	g.mu.RLock()
	defer g.mu.RUnlock()
	packs := make([]*Pack, 0, len(g.packs))
	for _, p := range g.packs {
		packs = append(packs, p)
	}
	return packs
}

// PackFor returns the deepest pack whose directory contains the given
// workspace-relative file path.
func (g *Graph) PackFor(relPath string) (*Pack, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *Pack
	for _, p := range g.packs {
		if p.Name == "." {
			if best == nil {
				best = p
			}
			continue
		}
		if relPath == p.Name || strings.HasPrefix(relPath, p.Name+"/") {
			if best == nil || len(p.Name) > len(best.Name) {
				best = p
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// Order returns pack names in dependency order (dependencies before
// dependents), or an error naming the cycle when the declared dependencies
// are not acyclic.
func (g *Graph) Order() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []toposort.Edge
	for name, p := range g.packs {
		if len(p.Dependencies) == 0 {
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		for _, dep := range p.Dependencies {
			edges = append(edges, toposort.Edge{dep, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("pack dependencies contain cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, name := range sorted {
		if name == nil {
			continue
		}
		s := name.(string)
		// Dependencies on undeclared packs appear as vertices too; keep
		// only packs the scan actually found.
		if _, ok := g.packs[s]; ok {
			order = append(order, s)
		}
	}
	return order, nil
}

// MissingDependencies returns, per pack, declared dependencies that do not
// resolve to a scanned pack. These surface as warnings in graph output.
func (g *Graph) MissingDependencies() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	missing := make(map[string][]string)
	for name, p := range g.packs {
		for _, dep := range p.Dependencies {
			if _, ok := g.packs[dep]; !ok {
				missing[name] = append(missing[name], dep)
			}
		}
	}
	return missing
}
