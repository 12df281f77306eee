package pack

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func writePack(t *testing.T, root, dir, manifest string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(dir))
	if err := os.MkdirAll(full, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(full, ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatalf("writing manifest in %s: %v", dir, err)
	}
}

func TestLoadPackEnforcementFlags(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "packs/billing", `enforce_dependencies: true
enforce_privacy: strict
dependencies:
  - packs/users
`)

	p, err := LoadPack(root, filepath.Join(root, "packs", "billing"))
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}

	if p.Name != "packs/billing" {
		t.Errorf("name = %q", p.Name)
	}
	if !p.EnforceDependencies {
		t.Error("enforce_dependencies: true not decoded")
	}
	if !p.EnforcePrivacy {
		t.Error(`enforce_privacy: strict must count as enabled`)
	}
	if !reflect.DeepEqual(p.Dependencies, []string{"packs/users"}) {
		t.Errorf("dependencies = %v", p.Dependencies)
	}
	if p.PublicPath != "app/public" {
		t.Errorf("public path = %q, want default app/public", p.PublicPath)
	}
}

func TestLoadPackDisabledAndCustomPublicPath(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, "packs/users", `enforce_privacy: false
public_path: public/
`)

	p, err := LoadPack(root, filepath.Join(root, "packs", "users"))
	if err != nil {
		t.Fatalf("LoadPack: %v", err)
	}
	if p.EnforcePrivacy {
		t.Error("enforce_privacy: false decoded as enabled")
	}
	if p.EnforceDependencies {
		t.Error("absent enforce_dependencies must default to disabled")
	}
	if p.PublicPath != "public/" {
		t.Errorf("public path = %q", p.PublicPath)
	}
}

func TestScanFindsNestedPacksAndSkipsVendored(t *testing.T) {
	root := t.TempDir()
	writePack(t, root, ".", "enforce_dependencies: true\n")
	writePack(t, root, "packs/billing", "enforce_privacy: true\n")
	writePack(t, root, "packs/billing/legacy", "{}\n")
	writePack(t, root, "vendor/gems/some_gem", "enforce_privacy: true\n")

	packs, err := Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var names []string
	for _, p := range packs {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	want := []string{".", "packs/billing", "packs/billing/legacy"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("scanned packs = %v, want %v", names, want)
	}
}

func TestLoadTodo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TodoFile)
	content := `---
packs/users:
  "::Users::Profile":
    violations:
      - privacy
    files:
      - packs/billing/app/services/charge.rb
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing todo: %v", err)
	}

	entries, err := LoadTodo(path)
	if err != nil {
		t.Fatalf("LoadTodo: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	e := entries[0]
	if e.DefiningPack != "packs/users" || e.Constant != "::Users::Profile" {
		t.Errorf("entry = %+v", e)
	}
	if !reflect.DeepEqual(e.Types, []string{"privacy"}) {
		t.Errorf("types = %v", e.Types)
	}
	if !reflect.DeepEqual(e.Files, []string{"packs/billing/app/services/charge.rb"}) {
		t.Errorf("files = %v", e.Files)
	}
}

func TestLoadWorkspaceConfig(t *testing.T) {
	root := t.TempDir()
	content := `include:
  - "**/*.rb"
exclude:
  - "vendor/**"
package_paths:
  - "packs/*"
`
	if err := os.WriteFile(filepath.Join(root, WorkspaceFile), []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", WorkspaceFile, err)
	}

	cfg, err := LoadWorkspaceConfig(root)
	if err != nil {
		t.Fatalf("LoadWorkspaceConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg.PackagePaths, []string{"packs/*"}) {
		t.Errorf("package_paths = %v", cfg.PackagePaths)
	}
	if !reflect.DeepEqual(cfg.Exclude, []string{"vendor/**"}) {
		t.Errorf("exclude = %v", cfg.Exclude)
	}

	// A workspace without packwerk.yml gets defaults, matching the tool.
	empty, err := LoadWorkspaceConfig(t.TempDir())
	if err != nil {
		t.Fatalf("missing packwerk.yml should not error: %v", err)
	}
	if len(empty.Include) != 0 {
		t.Errorf("include = %v, want empty", empty.Include)
	}
}

func TestLoadTodoMissingFile(t *testing.T) {
	entries, err := LoadTodo(filepath.Join(t.TempDir(), TodoFile))
	if err != nil {
		t.Fatalf("missing todo file should not error: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
}
