package config

// Config is the top-level packls configuration.
// It is read-through state: callers re-read after a change notification,
// and the last loaded value wins.
type Config struct {
	// Executable is the full check invocation, split on whitespace into
	// argv words (e.g. "bin/packwerk check" or "bundle exec packwerk check").
	Executable string `json:"executable"`

	// CheckOnSave runs a single-file check whenever a document is saved.
	CheckOnSave bool `json:"checkOnSave"`

	// ShowAll includes stale (already-acknowledged) and strict-mode
	// violations in the diagnostic set, not just new ones.
	ShowAll bool `json:"showAll"`

	// DebounceMS delays a scheduled check after an editor event so rapid
	// keystrokes collapse into one run.
	DebounceMS int `json:"debounceMs"`

	// MaxOutputBytes caps buffered checker output. Whole-workspace runs
	// can produce large reports; anything beyond the cap is truncated.
	MaxOutputBytes int `json:"maxOutputBytes"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"logLevel"`
}

// ExecutableArgs splits the configured executable into argv words.
func (c *Config) ExecutableArgs() []string {
	return splitCommand(c.Executable)
}

// BaseArgs returns the executable argv with a trailing "check" word
// stripped. Subcommands other than check (validate, list-definitions, the
// mutation commands) run against this base invocation.
func (c *Config) BaseArgs() []string {
	args := splitCommand(c.Executable)
	if len(args) > 0 && args[len(args)-1] == "check" {
		args = args[:len(args)-1]
	}
	return args
}
