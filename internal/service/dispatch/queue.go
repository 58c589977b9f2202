package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("dispatch: queue full")
	ErrQueueClosed = errors.New("dispatch: queue closed")
)

// Task is one unit of work run by the queue's worker. enqueued is the time
// Submit accepted the task.
type Task func(ctx context.Context, enqueued time.Time)

type queued struct {
	task     Task
	enqueued time.Time
}

// Queue is a multi-producer, single-consumer FIFO. Exactly one worker
// goroutine runs tasks, one at a time, in the order Submit accepted them.
//
// A task that panics is logged and skipped; the worker keeps draining.
// Close stops the worker without draining what is still pending.
type Queue struct {
	mu       sync.Mutex
	pending  []queued
	maxDepth int
	closed   bool

	// ctx is handed to every task and cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	wake         chan struct{}
	stop         chan struct{}
	stopped      chan struct{}
	closeTimeout time.Duration
	now          func() time.Time
}

// DefaultCloseTimeout bounds how long Close waits for the in-flight task.
const DefaultCloseTimeout = 5 * time.Second

type Option func(*Queue)

// WithMaxDepth bounds the number of pending tasks. Zero means unbounded.
func WithMaxDepth(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxDepth = n
		}
	}
}

// WithClock overrides the enqueue timestamp source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithCloseTimeout bounds how long Close waits for a task that is still
// running. Non-positive values keep the default.
func WithCloseTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.closeTimeout = d
		}
	}
}

// New creates the queue and starts its worker.
func New(opts ...Option) *Queue {
	q := &Queue{
		wake:         make(chan struct{}, 1),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
		closeTimeout: DefaultCloseTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	go q.run()
	return q
}

// Submit hands task to the worker. It never runs the task itself and only
// holds the queue lock long enough to append.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.maxDepth > 0 && len(q.pending) >= q.maxDepth {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.pending = append(q.pending, queued{task: task, enqueued: q.now()})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Depth returns the number of tasks waiting for the worker.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the worker, waiting at most the close timeout for the
// current task. Safe to call more than once.
func (q *Queue) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), q.closeTimeout)
	defer cancel()
	_ = q.Shutdown(ctx)
}

// Shutdown rejects further submissions, abandons pending tasks and cancels
// the context of the running one. It waits for the worker to exit until ctx
// is done; a task that ignores cancellation is then left behind and
// Shutdown returns ctx.Err().
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	first := !q.closed
	dropped := 0
	if first {
		q.closed = true
		dropped = len(q.pending)
		q.pending = nil
	}
	q.mu.Unlock()

	if first {
		q.cancel()
		close(q.stop)
		if dropped > 0 {
			slog.Warn("dispatch: queue closed with pending tasks", "dropped", dropped)
		}
	}

	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		slog.Warn("dispatch: abandoning in-flight task", "error", ctx.Err())
		return ctx.Err()
	}
}

// Done is closed once the worker goroutine has exited.
func (q *Queue) Done() <-chan struct{} { return q.stopped }

func (q *Queue) run() {
	defer close(q.stopped)

	ctx := q.ctx
	for {
		item, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			}
		}

		select {
		case <-q.stop:
			return
		default:
		}
		q.exec(ctx, item)
	}
}

func (q *Queue) next() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return queued{}, false
	}
	item := q.pending[0]
	q.pending[0] = queued{}
	q.pending = q.pending[1:]
	if len(q.pending) == 0 {
		// Drop the drained backing array so a burst does not pin memory.
		q.pending = nil
	}
	return item, true
}

func (q *Queue) exec(ctx context.Context, item queued) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dispatch: task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	item.task(ctx, item.enqueued)
}
