// Package checker runs the external module-boundary checker and decodes
// its output. The checker is an opaque process: this package owns the
// invocation contract (argv shapes, stdin payloads) and the output contract
// (JSON check/validate reports, list-definitions lines) and nothing else.
package checker

import (
	"context"

	"packls/internal/config"
)

// CheckOptions selects what a check run covers.
type CheckOptions struct {
	// File is the workspace-relative path to check. Empty means the whole
	// workspace.
	File string

	// Buffer carries the unsaved document content, piped to the checker's
	// stdin so the live buffer is checked instead of the on-disk file.
	Buffer []byte

	// IgnoreRecorded asks the checker to report violations that are
	// already acknowledged in todo files.
	IgnoreRecorded bool
}

// ConfigFunc supplies the current configuration. The checker re-reads it on
// every invocation so settings changes take effect without restart.
type ConfigFunc func() *config.Config

// Checker binds the configured executable to the runner.
type Checker struct {
	runner  *Runner
	cfg     ConfigFunc
	workDir string
}

// New creates a Checker rooted at the workspace directory.
func New(runner *Runner, cfg ConfigFunc, workDir string) *Checker {
	return &Checker{
		runner:  runner,
		cfg:     cfg,
		workDir: workDir,
	}
}

// WorkDir returns the workspace root the checker runs in.
func (c *Checker) WorkDir() string {
	return c.workDir
}

// CheckInvocation builds the argv for a check run:
//
//	<executable> --json [--ignore-recorded-violations] [<relative-file-path>]
func (c *Checker) CheckInvocation(opts CheckOptions) Invocation {
	args := append([]string{}, c.cfg().ExecutableArgs()...)
	args = append(args, "--json")
	if opts.IgnoreRecorded {
		args = append(args, "--ignore-recorded-violations")
	}
	if opts.File != "" {
		args = append(args, opts.File)
	}
	return Invocation{Args: args, Dir: c.workDir, Stdin: opts.Buffer}
}

// StartCheck spawns a check run and returns the process handle so the
// caller can wire Kill into its cancellation path.
func (c *Checker) StartCheck(ctx context.Context, opts CheckOptions) (*Process, error) {
	return c.runner.Start(ctx, c.CheckInvocation(opts))
}

// Validate runs `<base-executable> validate --json` to completion.
func (c *Checker) Validate(ctx context.Context) (*ValidateResult, error) {
	args := append([]string{}, c.cfg().BaseArgs()...)
	args = append(args, "validate", "--json")

	out, err := c.runner.Run(ctx, Invocation{Args: args, Dir: c.workDir})
	if err != nil {
		// validate exits non-zero when the configuration is invalid but
		// still prints the JSON report.
		if _, ok := err.(*ExitError); !ok {
			return nil, err
		}
	}
	return ParseValidateOutput(out.Stdout)
}

// UpdateTodo runs `<base-executable> update-todo [files...]` to
// completion. Stdout is ignored; the command rewrites todo files in place.
func (c *Checker) UpdateTodo(ctx context.Context, files []string) error {
	args := append([]string{}, c.cfg().BaseArgs()...)
	args = append(args, "update-todo")
	args = append(args, files...)

	_, err := c.runner.Run(ctx, Invocation{Args: args, Dir: c.workDir})
	return err
}

// ListDefinitions runs `<base-executable> list-definitions` to completion.
func (c *Checker) ListDefinitions(ctx context.Context) ([]Definition, error) {
	args := append([]string{}, c.cfg().BaseArgs()...)
	args = append(args, "list-definitions")

	out, err := c.runner.Run(ctx, Invocation{Args: args, Dir: c.workDir})
	if err != nil {
		return nil, err
	}
	return ParseDefinitions(out.Stdout), nil
}
