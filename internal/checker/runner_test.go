package checker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	r := NewRunner(nil, 0)
	out, err := r.Run(context.Background(), Invocation{
		Args: []string{"sh", "-c", `echo '{"status":"ok"}'`},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(out.Stdout)) != `{"status":"ok"}` {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestRunNonZeroExitKeepsOutput(t *testing.T) {
	r := NewRunner(nil, 0)
	out, err := r.Run(context.Background(), Invocation{
		Args: []string{"sh", "-c", `echo report; echo boom >&2; exit 1`},
	})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if exitErr.Code != 1 {
		t.Errorf("code = %d, want 1", exitErr.Code)
	}
	if !strings.Contains(string(exitErr.Stderr), "boom") {
		t.Errorf("stderr = %q, want the tool's own message", exitErr.Stderr)
	}
	// The report on stdout is still usable; violations exit non-zero.
	if strings.TrimSpace(string(out.Stdout)) != "report" {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestStartMissingCommand(t *testing.T) {
	r := NewRunner(nil, 0)
	_, err := r.Start(context.Background(), Invocation{
		Args: []string{"definitely-not-a-real-command-xyz"},
	})

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want *NotFoundError", err)
	}
	if notFound.Command != "definitely-not-a-real-command-xyz" {
		t.Errorf("command = %q", notFound.Command)
	}
}

func TestKillReportsErrKilled(t *testing.T) {
	r := NewRunner(nil, 0)
	p, err := r.Start(context.Background(), Invocation{
		Args: []string{"sleep", "30"},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		p.Kill()
		p.Kill() // idempotent
	}()

	done := make(chan error, 1)
	go func() {
		_, werr := p.Wait()
		done <- werr
	}()

	select {
	case werr := <-done:
		if !errors.Is(werr, ErrKilled) {
			t.Errorf("Wait err = %v, want ErrKilled", werr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Kill did not terminate the process")
	}
}

func TestRunPipesStdin(t *testing.T) {
	r := NewRunner(nil, 0)
	out, err := r.Run(context.Background(), Invocation{
		Args:  []string{"cat"},
		Stdin: []byte("unsaved buffer contents"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out.Stdout) != "unsaved buffer contents" {
		t.Errorf("stdout = %q", out.Stdout)
	}
}

func TestOutputCap(t *testing.T) {
	r := NewRunner(nil, 64)
	out, err := r.Run(context.Background(), Invocation{
		Args: []string{"sh", "-c", "yes x | head -c 10000"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Stdout) != 64 {
		t.Errorf("stdout length = %d, want capped at 64", len(out.Stdout))
	}
}

func TestProcessManagerTracksLifecycle(t *testing.T) {
	pm := NewProcessManager()
	r := NewRunner(pm, 0)

	p, err := r.Start(context.Background(), Invocation{
		Args: []string{"sleep", "30"},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if pm.Count() != 1 {
		t.Errorf("Count = %d, want 1 while running", pm.Count())
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll: %v", err)
	}
	p.Wait() //nolint:errcheck
	if pm.Count() != 0 {
		t.Errorf("Count = %d, want 0 after exit", pm.Count())
	}
}
