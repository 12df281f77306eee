package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
)

// ErrKilled reports that the process was killed through Process.Kill.
var ErrKilled = errors.New("process killed")

// NotFoundError reports that the checker command does not exist.
// It is surfaced to the user as a misconfiguration warning and never retried.
type NotFoundError struct {
	Command string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("command not found: %s", e.Command)
}

// ExitError reports a non-zero exit. Stderr is preserved verbatim so the
// tool's own message reaches the user. Stdout may still carry a usable
// report: the checker exits non-zero when violations exist.
type ExitError struct {
	Code   int
	Stderr []byte
	err    error
}

func (e *ExitError) Error() string {
	if len(e.Stderr) > 0 {
		return fmt.Sprintf("command exited with code %d: %s", e.Code, bytes.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("command exited with code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.err }

// Invocation describes one checker run.
type Invocation struct {
	Args  []string // argv; Args[0] is the program
	Dir   string   // working directory
	Stdin []byte   // optional payload piped to the process (unsaved buffer)
}

// Output is the raw result of a finished run.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner spawns checker processes. Buffered output is capped at
// maxOutputBytes per stream because whole-workspace reports can be large.
type Runner struct {
	procMgr        *ProcessManager
	maxOutputBytes int
}

// NewRunner creates a Runner. procMgr may be nil, in which case spawned
// processes are not tracked for shutdown cleanup.
func NewRunner(procMgr *ProcessManager, maxOutputBytes int) *Runner {
	if maxOutputBytes <= 0 {
		maxOutputBytes = 8 << 20
	}
	return &Runner{
		procMgr:        procMgr,
		maxOutputBytes: maxOutputBytes,
	}
}

// Process is a handle on a running checker invocation.
type Process struct {
	cmd     *exec.Cmd
	procMgr *ProcessManager

	mu     sync.Mutex
	killed bool

	done   chan struct{}
	output Output
	err    error
}

// newCommand creates an exec.Cmd with process group isolation.
// Setpgid puts the subprocess in its own process group so Kill can take
// down the entire subprocess tree (bundler wrappers spawn children).
func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

// Start spawns the invocation and returns a handle. A missing command is
// reported as *NotFoundError before anything runs.
func (r *Runner) Start(ctx context.Context, inv Invocation) (*Process, error) {
	if len(inv.Args) == 0 {
		return nil, errors.New("empty invocation")
	}

	cmd := newCommand(ctx, inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	if inv.Stdin != nil {
		cmd.Stdin = bytes.NewReader(inv.Stdin)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &NotFoundError{Command: inv.Args[0]}
		}
		return nil, fmt.Errorf("starting command: %w", err)
	}

	if r.procMgr != nil {
		r.procMgr.Track(cmd)
	}

	p := &Process{
		cmd:     cmd,
		procMgr: r.procMgr,
		done:    make(chan struct{}),
	}

	go p.collect(stdoutPipe, stderrPipe, r.maxOutputBytes)

	return p, nil
}

// Run spawns the invocation and waits for completion.
func (r *Runner) Run(ctx context.Context, inv Invocation) (Output, error) {
	p, err := r.Start(ctx, inv)
	if err != nil {
		return Output{}, err
	}
	return p.Wait()
}

// collect drains both pipes concurrently, then waits on the command.
// Draining before cmd.Wait prevents a deadlock when subprocess output
// exceeds the pipe buffer capacity.
func (p *Process) collect(stdoutPipe, stderrPipe io.Reader, maxBytes int) {
	var wg sync.WaitGroup
	stdoutBuf := newCappedBuffer(maxBytes)
	stderrBuf := newCappedBuffer(maxBytes)

	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(stdoutBuf, stdoutPipe) //nolint:errcheck
	}()
	go func() {
		defer wg.Done()
		io.Copy(stderrBuf, stderrPipe) //nolint:errcheck
	}()
	wg.Wait()

	waitErr := p.cmd.Wait()

	if p.procMgr != nil {
		p.procMgr.Untrack(p.cmd)
	}

	p.mu.Lock()
	killed := p.killed
	p.mu.Unlock()

	p.output = Output{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}
	switch {
	case killed:
		p.err = ErrKilled
	case waitErr != nil:
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		p.err = &ExitError{Code: code, Stderr: p.output.Stderr, err: waitErr}
	}
	close(p.done)
}

// Wait blocks until the process finishes and returns its output.
// Output.Stdout is valid even when err is an *ExitError.
func (p *Process) Wait() (Output, error) {
	<-p.done
	return p.output, p.err
}

// Kill terminates the entire process group. Termination is requested, not
// awaited: the caller's completion path still fires once the process exits.
// Idempotent.
func (p *Process) Kill() {
	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return
	}
	p.killed = true
	p.mu.Unlock()

	killProcessGroup(p.cmd) //nolint:errcheck
}

// killProcessGroup kills the process group associated with the command.
// Negative PID addresses the whole group, preventing orphaned children.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}

	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("killing process group: %w", err)
	}

	return nil
}

// cappedBuffer buffers up to max bytes and silently discards the rest.
type cappedBuffer struct {
	buf bytes.Buffer
	max int
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - b.buf.Len()
	if remaining <= 0 {
		// Report the full length so io.Copy keeps draining the pipe.
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining]) //nolint:errcheck
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
