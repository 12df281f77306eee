// Package pack models the workspace's pack layout: package.yml manifests,
// package_todo.yml acknowledgement files and the packwerk.yml workspace
// configuration, plus the dependency graph spanned by the manifests.
package pack

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Well-known file names.
const (
	ManifestFile  = "package.yml"
	TodoFile      = "package_todo.yml"
	WorkspaceFile = "packwerk.yml"
)

// Pack is one directory-scoped module boundary.
type Pack struct {
	// Name is the workspace-relative directory, "." for the root pack.
	Name string

	// Path is the absolute directory of the pack.
	Path string

	// Dependencies lists the pack names this pack declares it depends on.
	Dependencies []string

	EnforceDependencies bool
	EnforcePrivacy      bool

	// PublicPath is the directory whose constants are public, relative to
	// the pack ("app/public" when unset).
	PublicPath string
}

// ManifestPath returns the absolute path of the pack's package.yml.
func (p *Pack) ManifestPath() string {
	return filepath.Join(p.Path, ManifestFile)
}

// TodoPath returns the absolute path of the pack's package_todo.yml.
func (p *Pack) TodoPath() string {
	return filepath.Join(p.Path, TodoFile)
}

// manifest is the on-disk shape of package.yml. The enforcement flags
// accept booleans or the string "strict".
type manifest struct {
	EnforceDependencies yaml.Node `yaml:"enforce_dependencies"`
	EnforcePrivacy      yaml.Node `yaml:"enforce_privacy"`
	PublicPath          string    `yaml:"public_path"`
	Dependencies        []string  `yaml:"dependencies"`
}

// LoadPack reads a pack from its directory. root anchors the pack name.
func LoadPack(root, dir string) (*Pack, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("reading manifest in %s: %w", dir, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Join(dir, ManifestFile), err)
	}

	name, err := filepath.Rel(root, dir)
	if err != nil {
		return nil, fmt.Errorf("resolving pack name for %s: %w", dir, err)
	}
	name = filepath.ToSlash(name)

	publicPath := m.PublicPath
	if publicPath == "" {
		publicPath = "app/public"
	}

	return &Pack{
		Name:                name,
		Path:                dir,
		Dependencies:        m.Dependencies,
		EnforceDependencies: enforcementEnabled(m.EnforceDependencies),
		EnforcePrivacy:      enforcementEnabled(m.EnforcePrivacy),
		PublicPath:          publicPath,
	}, nil
}

// enforcementEnabled decodes an enforcement flag node: true, false, or the
// string "strict" (which counts as enabled).
func enforcementEnabled(node yaml.Node) bool {
	if node.IsZero() {
		return false
	}
	var b bool
	if err := node.Decode(&b); err == nil {
		return b
	}
	var s string
	if err := node.Decode(&s); err == nil {
		return s == "strict" || s == "true"
	}
	return false
}

// WorkspaceConfig is the decoded packwerk.yml.
type WorkspaceConfig struct {
	Include      []string `yaml:"include"`
	Exclude      []string `yaml:"exclude"`
	PackagePaths []string `yaml:"package_paths"`
}

// LoadWorkspaceConfig reads packwerk.yml from the workspace root.
// A missing file yields defaults, matching the checker's own behavior.
func LoadWorkspaceConfig(root string) (*WorkspaceConfig, error) {
	data, err := os.ReadFile(filepath.Join(root, WorkspaceFile))
	if os.IsNotExist(err) {
		return &WorkspaceConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", WorkspaceFile, err)
	}

	var cfg WorkspaceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", WorkspaceFile, err)
	}
	return &cfg, nil
}
