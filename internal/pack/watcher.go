package pack

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"packls/internal/events"
)

// Watcher observes pack manifests, todo files and packwerk.yml, batching
// changes through a debounce window so a checker run that rewrites a dozen
// todo files triggers one rescan, not twelve.
type Watcher struct {
	root     string
	graph    *Graph
	bus      *events.Bus
	logger   *slog.Logger
	debounce time.Duration

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// NewWatcher creates a watcher for the workspace rooted at root.
func NewWatcher(root string, graph *Graph, bus *events.Bus, logger *slog.Logger, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:     root,
		graph:    graph,
		bus:      bus,
		logger:   logger,
		debounce: debounce,
		fsw:      fsw,
		pending:  make(map[string]struct{}),
	}, nil
}

// Start registers watch points and runs the event loop until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.root); err != nil {
		return err
	}
	for _, p := range w.graph.Packs() {
		if p.Path == w.root {
			continue
		}
		if err := w.fsw.Add(p.Path); err != nil {
			w.logger.Warn("watcher: cannot watch pack dir", "dir", p.Path, "error", err)
		}
	}

	go w.loop(ctx)
	return nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.fsw.Close() //nolint:errcheck
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.record(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: fsnotify error", "error", err)
		}
	}
}

// relevant keeps only writes/creates/removes of the three config file
// kinds; everything else in a pack directory is the checker's business.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	switch filepath.Base(event.Name) {
	case ManifestFile, TodoFile, WorkspaceFile:
		return true
	}
	return false
}

func (w *Watcher) record(path string) {
	w.mu.Lock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
	w.mu.Unlock()
}

// flush rescans the pack graph and publishes one batched change event.
func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	packs, err := Scan(context.Background(), w.root)
	if err != nil {
		w.logger.Warn("watcher: rescan failed", "error", err)
	} else {
		w.graph.Replace(packs)
		// New pack directories need watch points too.
		for _, p := range packs {
			if p.Path != w.root {
				w.fsw.Add(p.Path) //nolint:errcheck
			}
		}
	}

	w.logger.Debug("watcher: packs changed", "paths", len(paths))
	w.bus.Publish(events.TopicPacks, events.PacksChanged{Paths: paths})
}
