// Package queue serializes checker runs. Each task is keyed by the
// resource it operates on; enqueueing a task cancels any earlier task with
// the same identity, so at most one non-canceled run per resource is ever
// pending or running (single-flight), and the queue executes bodies one at
// a time process-wide so concurrent editor events cannot spawn an unbounded
// number of checker processes.
package queue

import "sync"

// Identity is an opaque, comparable key identifying what a task operates
// on: a workspace-relative file path, or WorkspaceIdentity for a whole
// workspace run. Two tasks with equal identity are mutually exclusive.
type Identity string

// WorkspaceIdentity is the sentinel identity for whole-workspace runs.
const WorkspaceIdentity Identity = "::workspace"

// State tracks a task through its lifecycle.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCanceled
	StateFinished
)

// CancelFunc tears down a task's in-flight work, typically by killing the
// spawned checker process.
type CancelFunc func()

// Body starts a task's asynchronous work and returns a cancel callback.
// The body must arrange for tok.Finish() to be called when its async work
// completes, on every path including failure; an escaped error would
// otherwise stall the queue's control loop.
type Body func(tok *Token) CancelFunc

// Token is handed to a body so its completion path can observe cancellation
// and signal that the work is done.
type Token struct {
	task *Task
}

// Canceled reports whether the task has been canceled. A canceled task's
// completion callback must check this before mutating shared state: the
// task's run settles on cancel without awaiting the process, so a trailing
// completion can still fire afterward and must no-op.
func (tok *Token) Canceled() bool {
	return tok.task.Canceled()
}

// Finish signals that the task's async work is complete and the queue may
// advance. Idempotent.
func (tok *Token) Finish() {
	tok.task.finish()
}

// Task wraps one unit of cancelable asynchronous work.
type Task struct {
	identity Identity
	body     Body

	mu       sync.Mutex
	state    State
	enqueued bool
	cancelFn CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

// NewTask creates a detached task. It does nothing until enqueued.
func NewTask(identity Identity, body Body) *Task {
	return &Task{
		identity: identity,
		body:     body,
		done:     make(chan struct{}),
	}
}

// Identity returns the task's resource key.
func (t *Task) Identity() Identity {
	return t.identity
}

// Canceled reports whether Cancel has been called.
func (t *Task) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateCanceled
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done settles exactly once: when the body calls Finish, or immediately
// when the task is canceled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Run invokes the body unless the task was canceled before starting, in
// which case it settles immediately and no process is ever spawned.
// The returned channel is the task's run promise.
func (t *Task) Run() <-chan struct{} {
	t.mu.Lock()
	if t.state == StateCanceled {
		t.mu.Unlock()
		t.settle()
		return t.done
	}
	t.state = StateRunning
	t.mu.Unlock()

	cancelFn := t.body(&Token{task: t})

	t.mu.Lock()
	if t.state == StateCanceled {
		// Canceled while the body was starting: tear down right away.
		t.mu.Unlock()
		if cancelFn != nil {
			cancelFn()
		}
		t.settle()
		return t.done
	}
	t.cancelFn = cancelFn
	t.mu.Unlock()

	return t.done
}

// Cancel marks the task canceled, invokes the stored cancel callback if the
// body has started, and settles the run promise immediately. The underlying
// async work may still be winding down when the promise settles; its
// completion callback is expected to observe Canceled and no-op.
// Idempotent; a no-op after the task has finished.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.state == StateCanceled || t.state == StateFinished {
		t.mu.Unlock()
		return
	}
	t.state = StateCanceled
	cancelFn := t.cancelFn
	t.cancelFn = nil
	t.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
	}
	t.settle()
}

// finish marks the task finished and settles the run promise. Called via
// Token.Finish; a finish racing a cancel keeps the canceled state.
func (t *Task) finish() {
	t.mu.Lock()
	if t.state != StateCanceled {
		t.state = StateFinished
	}
	t.mu.Unlock()
	t.settle()
}

func (t *Task) settle() {
	t.doneOnce.Do(func() {
		close(t.done)
	})
}
