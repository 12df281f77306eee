package queue

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestEnqueueRunsTaskToCompletion(t *testing.T) {
	q := New(testLogger())

	task := NewTask("packs/a/file.rb", func(tok *Token) CancelFunc {
		go tok.Finish()
		return nil
	})
	if err := q.Enqueue(task); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	<-task.Done()
	if got := task.State(); got != StateFinished {
		t.Errorf("state = %v, want StateFinished", got)
	}
	waitFor(t, func() bool { return !q.Busy() })
}

func TestReenqueueIsAnError(t *testing.T) {
	q := New(testLogger())

	gate := make(chan struct{})
	task := NewTask("packs/a/file.rb", func(tok *Token) CancelFunc {
		go func() {
			<-gate
			tok.Finish()
		}()
		return nil
	})

	if err := q.Enqueue(task); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := q.Enqueue(task); !errors.Is(err, ErrAlreadyEnqueued) {
		t.Errorf("second Enqueue = %v, want ErrAlreadyEnqueued", err)
	}

	close(gate)
	<-task.Done()
}

func TestSameIdentitySupersedes(t *testing.T) {
	q := New(testLogger())

	gate := make(chan struct{})
	var canceled atomic.Bool
	first := NewTask("packs/a/file.rb", func(tok *Token) CancelFunc {
		go func() {
			<-gate
			tok.Finish()
		}()
		return func() { canceled.Store(true) }
	})
	second := NewTask("packs/a/file.rb", func(tok *Token) CancelFunc {
		go tok.Finish()
		return nil
	})

	if err := q.Enqueue(first); err != nil {
		t.Fatalf("Enqueue first: %v", err)
	}
	waitFor(t, func() bool { return first.State() == StateRunning })

	if err := q.Enqueue(second); err != nil {
		t.Fatalf("Enqueue second: %v", err)
	}

	// The earlier run's promise settles on cancel without waiting for its
	// async work.
	<-first.Done()
	waitFor(t, func() bool { return canceled.Load() })
	if got := first.State(); got != StateCanceled {
		t.Errorf("first state = %v, want StateCanceled", got)
	}

	close(gate)
	<-second.Done()
	if got := second.State(); got != StateFinished {
		t.Errorf("second state = %v, want StateFinished", got)
	}
}

func TestCancelBeforeRunSkipsBody(t *testing.T) {
	q := New(testLogger())

	gate := make(chan struct{})
	blocker := NewTask("blocker", func(tok *Token) CancelFunc {
		go func() {
			<-gate
			tok.Finish()
		}()
		return nil
	})

	var ran atomic.Bool
	victim := NewTask("victim", func(tok *Token) CancelFunc {
		ran.Store(true)
		go tok.Finish()
		return nil
	})

	if err := q.Enqueue(blocker); err != nil {
		t.Fatalf("Enqueue blocker: %v", err)
	}
	if err := q.Enqueue(victim); err != nil {
		t.Fatalf("Enqueue victim: %v", err)
	}

	q.Cancel("victim")
	<-victim.Done()

	close(gate)
	<-blocker.Done()
	waitFor(t, func() bool { return !q.Busy() })

	if ran.Load() {
		t.Error("canceled task's body must never be invoked")
	}
	if got := victim.State(); got != StateCanceled {
		t.Errorf("victim state = %v, want StateCanceled", got)
	}
}

func TestCancelWithoutMatchIsANoOp(t *testing.T) {
	q := New(testLogger())
	q.Cancel("nothing-queued")
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestBodiesNeverOverlap(t *testing.T) {
	q := New(testLogger())

	var running, peak int32
	const n = 20

	tasks := make([]*Task, 0, n)
	for i := 0; i < n; i++ {
		task := NewTask(Identity(fmt.Sprintf("file-%d.rb", i)), func(tok *Token) CancelFunc {
			go func() {
				cur := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				tok.Finish()
			}()
			return nil
		})
		tasks = append(tasks, task)
		if err := q.Enqueue(task); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}

	for _, task := range tasks {
		<-task.Done()
	}
	if got := atomic.LoadInt32(&peak); got > 1 {
		t.Errorf("peak concurrent bodies = %d, want at most 1", got)
	}
}

func TestPanickingBodyDoesNotStallQueue(t *testing.T) {
	q := New(testLogger())

	bad := NewTask("bad", func(tok *Token) CancelFunc {
		panic("body exploded")
	})
	good := NewTask("good", func(tok *Token) CancelFunc {
		go tok.Finish()
		return nil
	})

	if err := q.Enqueue(bad); err != nil {
		t.Fatalf("Enqueue bad: %v", err)
	}
	if err := q.Enqueue(good); err != nil {
		t.Fatalf("Enqueue good: %v", err)
	}

	<-bad.Done()
	<-good.Done()
	if got := good.State(); got != StateFinished {
		t.Errorf("good state = %v, want StateFinished", got)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	task := NewTask("x", func(tok *Token) CancelFunc { return nil })
	task.Cancel()
	task.Cancel()
	if got := task.State(); got != StateCanceled {
		t.Errorf("state = %v, want StateCanceled", got)
	}
	select {
	case <-task.Done():
	default:
		t.Error("Done should be settled after Cancel")
	}
}
