package diagnostics

import (
	"sync"

	"packls/internal/events"
)

// Collection is the process-wide diagnostic store. It is injected into the
// components that read and replace it; only its owner mutates it, and
// mutation is always a wholesale replace (per file for single-file runs,
// across the board for workspace runs), never an incremental patch. That
// discipline is what keeps a slow workspace run and a fast single-file run
// from interleaving into a partially stale state.
type Collection struct {
	bus *events.Bus

	mu     sync.RWMutex
	byFile map[string][]Diagnostic
}

// NewCollection creates an empty collection. bus may be nil (tests).
func NewCollection(bus *events.Bus) *Collection {
	return &Collection{
		bus:    bus,
		byFile: make(map[string][]Diagnostic),
	}
}

// ReplaceAll swaps the entire collection for a workspace run's result.
// Files present before but absent in the new set are cleared, so stale
// entries from a prior run never survive a newer one.
func (c *Collection) ReplaceAll(byFile map[string][]Diagnostic) {
	c.mu.Lock()
	changed := make([]string, 0, len(c.byFile)+len(byFile))
	for file := range c.byFile {
		if _, ok := byFile[file]; !ok {
			changed = append(changed, file)
		}
	}
	fresh := make(map[string][]Diagnostic, len(byFile))
	for file, diags := range byFile {
		fresh[file] = append([]Diagnostic(nil), diags...)
		changed = append(changed, file)
	}
	c.byFile = fresh
	c.mu.Unlock()

	c.notify(changed)
}

// ReplaceFile swaps a single file's entries for a single-file run's result.
// An empty or nil list clears the file.
func (c *Collection) ReplaceFile(file string, diags []Diagnostic) {
	c.mu.Lock()
	if len(diags) == 0 {
		delete(c.byFile, file)
	} else {
		c.byFile[file] = append([]Diagnostic(nil), diags...)
	}
	c.mu.Unlock()

	c.notify([]string{file})
}

// Clear empties the collection.
func (c *Collection) Clear() {
	c.mu.Lock()
	changed := make([]string, 0, len(c.byFile))
	for file := range c.byFile {
		changed = append(changed, file)
	}
	c.byFile = make(map[string][]Diagnostic)
	c.mu.Unlock()

	if len(changed) > 0 {
		c.notify(changed)
	}
}

// Get returns a file's diagnostics. The returned slice is a copy.
func (c *Collection) Get(file string) []Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Diagnostic(nil), c.byFile[file]...)
}

// Files returns every file that currently has diagnostics.
func (c *Collection) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	files := make([]string, 0, len(c.byFile))
	for file := range c.byFile {
		files = append(files, file)
	}
	return files
}

// Count returns the total number of diagnostics across all files.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, diags := range c.byFile {
		n += len(diags)
	}
	return n
}

func (c *Collection) notify(files []string) {
	if c.bus == nil || len(files) == 0 {
		return
	}
	c.bus.Publish(events.TopicDiagnostics, events.DiagnosticsUpdated{Files: files})
}
