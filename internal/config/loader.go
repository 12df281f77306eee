package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.packls/config.json
// Project: .packls.json relative to the workspace root.
func LoadDefault(workspaceRoot string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".packls", "config.json")
	projectPath := filepath.Join(workspaceRoot, ".packls.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and overlays the fields it sets.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	// Decode into an overlay of pointers so absent keys keep base values.
	var loaded struct {
		Executable     *string `json:"executable"`
		CheckOnSave    *bool   `json:"checkOnSave"`
		ShowAll        *bool   `json:"showAll"`
		DebounceMS     *int    `json:"debounceMs"`
		MaxOutputBytes *int    `json:"maxOutputBytes"`
		LogLevel       *string `json:"logLevel"`
	}
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Executable != nil {
		base.Executable = *loaded.Executable
	}
	if loaded.CheckOnSave != nil {
		base.CheckOnSave = *loaded.CheckOnSave
	}
	if loaded.ShowAll != nil {
		base.ShowAll = *loaded.ShowAll
	}
	if loaded.DebounceMS != nil {
		base.DebounceMS = *loaded.DebounceMS
	}
	if loaded.MaxOutputBytes != nil {
		base.MaxOutputBytes = *loaded.MaxOutputBytes
	}
	if loaded.LogLevel != nil {
		base.LogLevel = *loaded.LogLevel
	}

	return nil
}

// splitCommand splits a command string on whitespace.
// An empty string yields nil.
func splitCommand(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
