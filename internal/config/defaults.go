package config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Executable:     "bin/packwerk check",
		CheckOnSave:    true,
		ShowAll:        false,
		DebounceMS:     300,
		MaxOutputBytes: 8 << 20,
		LogLevel:       "info",
	}
}
