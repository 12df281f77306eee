package pack

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// scanConcurrency bounds parallel manifest parsing during a workspace scan.
const scanConcurrency = 8

// skipDirs are directories never containing packs.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"tmp":          true,
	"log":          true,
	"vendor":       true,
}

// Scan walks the workspace and loads every pack (every directory holding a
// package.yml). Manifests parse concurrently; the walk itself is cheap.
func Scan(ctx context.Context, root string) ([]*Pack, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == ManifestFile {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		packs []*Pack
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for _, dir := range dirs {
		dir := dir
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := LoadPack(root, dir)
			if err != nil {
				return err
			}
			mu.Lock()
			packs = append(packs, p)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(packs, func(i, j int) bool { return packs[i].Name < packs[j].Name })
	return packs, nil
}
