package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"packls/internal/config"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	workspace string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "packls",
		Short: "Editor integration for pack boundary checking",
		Long: `packls surfaces pack boundary violations as editor diagnostics.

The serve command runs a language server over stdio; the remaining
commands expose the same checks for terminal and CI use.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.workspace, "workspace", "C", ".", "workspace root directory")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newCheckCmd(opts),
		newValidateCmd(opts),
		newGraphCmd(opts),
		newInitCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load resolves the workspace root, configuration and logger shared by the
// subcommands. The log-level flag outranks the configured level.
func (o *rootOptions) load() (string, *config.Config, *slog.Logger, error) {
	root, err := filepath.Abs(o.workspace)
	if err != nil {
		return "", nil, nil, err
	}

	cfg, err := config.LoadDefault(root)
	if err != nil {
		return "", nil, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	return root, cfg, newLogger(cfg.LogLevel), nil
}

// newLogger builds the process logger. Logs go to stderr; stdout belongs
// to the protocol in serve mode and to command output everywhere else.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
