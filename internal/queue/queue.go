package queue

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrAlreadyEnqueued reports a task enqueued twice. Re-enqueueing is a
// programming error: a task settles once and cannot run again.
var ErrAlreadyEnqueued = errors.New("task already enqueued")

// Queue runs tasks strictly one at a time in FIFO order.
//
// The queue is the sole concurrency-limiting device between editor events
// and checker processes: however many saves and file switches arrive, at
// most one task body executes at any moment, and enqueueing for an identity
// already present cancels the earlier run first.
type Queue struct {
	logger *slog.Logger

	mu    sync.Mutex
	tasks []*Task
	busy  bool
}

// New creates an idle queue. logger must not be nil; queue transitions are
// the subsystem most exposed to editor-event races, so they are all logged.
func New(logger *slog.Logger) *Queue {
	return &Queue{logger: logger}
}

// Enqueue appends the task and starts the processing loop if idle.
// Every queued or running task with the same identity is canceled first;
// canceled tasks stay in the queue and drain through the normal
// run-to-completion path (settling immediately).
func (q *Queue) Enqueue(task *Task) error {
	q.mu.Lock()
	task.mu.Lock()
	if task.enqueued {
		task.mu.Unlock()
		q.mu.Unlock()
		return ErrAlreadyEnqueued
	}
	task.enqueued = true
	task.mu.Unlock()

	var superseded []*Task
	for _, queued := range q.tasks {
		if queued.Identity() == task.Identity() {
			superseded = append(superseded, queued)
		}
	}

	q.tasks = append(q.tasks, task)
	depth := len(q.tasks)
	kick := !q.busy
	if kick {
		q.busy = true
	}
	q.mu.Unlock()

	for _, old := range superseded {
		old.Cancel()
	}

	q.logger.Debug("queue: enqueue",
		"identity", task.Identity(),
		"depth", depth,
		"superseded", len(superseded),
		"kick", kick)

	if kick {
		go q.process()
	}
	return nil
}

// Cancel cancels every task in the queue whose identity matches, running or
// not. Matching tasks are not removed; they drain through the processing
// loop. A no-op when nothing matches.
func (q *Queue) Cancel(identity Identity) {
	q.mu.Lock()
	var matched []*Task
	for _, queued := range q.tasks {
		if queued.Identity() == identity {
			matched = append(matched, queued)
		}
	}
	depth := len(q.tasks)
	q.mu.Unlock()

	for _, task := range matched {
		task.Cancel()
	}

	if len(matched) > 0 {
		q.logger.Debug("queue: cancel",
			"identity", identity,
			"canceled", len(matched),
			"depth", depth)
	}
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Busy reports whether the processing loop is draining.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// process drains the queue head-first. Exactly one process loop runs at a
// time: Enqueue only starts one when the busy flag was clear.
func (q *Queue) process() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.busy = false
			q.mu.Unlock()
			q.logger.Debug("queue: idle")
			return
		}
		head := q.tasks[0]
		q.mu.Unlock()

		q.runTask(head)

		q.mu.Lock()
		q.tasks = q.tasks[1:]
		depth := len(q.tasks)
		q.mu.Unlock()

		q.logger.Debug("queue: task settled",
			"identity", head.Identity(),
			"state", head.State(),
			"depth", depth)
	}
}

// runTask runs one task to settlement. A panicking body is logged and the
// task force-settled so one failing task never stalls the queue.
func (q *Queue) runTask(task *Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue: task body panicked",
				"identity", task.Identity(),
				"panic", r)
			task.settle()
		}
	}()

	<-task.Run()
}
