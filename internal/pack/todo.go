package pack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TodoEntry is one acknowledged violation: a constant from another pack
// whose references are excluded from "new" reporting.
type TodoEntry struct {
	DefiningPack string   // pack the constant belongs to
	Constant     string   // fully qualified constant name
	Types        []string // violation types acknowledged (dependency, privacy)
	Files        []string // referencing files, workspace-relative
}

// LoadTodo reads a pack's package_todo.yml. A missing file yields an empty
// list; packs without acknowledged violations have no todo file.
func LoadTodo(path string) ([]TodoEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	// defining pack -> constant -> {violations, files}
	var raw map[string]map[string]struct {
		Violations []string `yaml:"violations"`
		Files      []string `yaml:"files"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var entries []TodoEntry
	for definingPack, constants := range raw {
		for constant, detail := range constants {
			entries = append(entries, TodoEntry{
				DefiningPack: definingPack,
				Constant:     constant,
				Types:        detail.Violations,
				Files:        detail.Files,
			})
		}
	}
	return entries, nil
}
