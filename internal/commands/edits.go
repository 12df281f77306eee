package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PublicSigil marks a constant's defining file as part of the pack's
// public interface.
const PublicSigil = "# pack_public: true"

// addDependencyToManifest inserts dep into the manifest's dependencies
// list, creating the list if absent. The edit is textual so comments and
// formatting in the manifest survive. Returns false when the dependency is
// already declared.
func addDependencyToManifest(manifestPath, dep string) (bool, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return false, err
	}

	lines := strings.Split(string(data), "\n")

	blockStart := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "dependencies:") {
			blockStart = i
			break
		}
	}

	if blockStart == -1 {
		// No dependencies block; append one.
		out := strings.TrimRight(string(data), "\n")
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("dependencies:\n  - %s\n", dep)
		return true, os.WriteFile(manifestPath, []byte(out), 0644)
	}

	// Collect existing entries and the block's end.
	indent := "  - "
	blockEnd := blockStart + 1
	for ; blockEnd < len(lines); blockEnd++ {
		trimmed := strings.TrimSpace(lines[blockEnd])
		if !strings.HasPrefix(trimmed, "- ") {
			break
		}
		if strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")) == dep {
			return false, nil
		}
		prefix := lines[blockEnd][:strings.Index(lines[blockEnd], "- ")+2]
		indent = prefix
	}

	entry := indent + dep
	inserted := append([]string{}, lines[:blockEnd]...)
	inserted = append(inserted, entry)
	inserted = append(inserted, lines[blockEnd:]...)

	return true, os.WriteFile(manifestPath, []byte(strings.Join(inserted, "\n")), 0644)
}

// insertPublicSigil writes the public sigil into the defining file, after
// any shebang or magic comments so Ruby tooling keeps recognizing them.
// A file that already carries the sigil is left untouched.
func insertPublicSigil(root, relPath string) error {
	path := filepath.Join(root, filepath.FromSlash(relPath))
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	content := string(data)
	if strings.Contains(content, PublicSigil) {
		return nil
	}

	lines := strings.Split(content, "\n")
	insertAt := 0
	for insertAt < len(lines) {
		trimmed := strings.TrimSpace(lines[insertAt])
		if strings.HasPrefix(trimmed, "#!") ||
			strings.HasPrefix(trimmed, "# frozen_string_literal") ||
			strings.HasPrefix(trimmed, "# encoding:") ||
			strings.HasPrefix(trimmed, "# typed:") {
			insertAt++
			continue
		}
		break
	}

	out := append([]string{}, lines[:insertAt]...)
	out = append(out, PublicSigil)
	out = append(out, lines[insertAt:]...)

	return os.WriteFile(path, []byte(strings.Join(out, "\n")), 0644)
}
