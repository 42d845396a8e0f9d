// Package opqueue defers store operations until the store is ready and runs
// them one at a time, in submission order, on a single worker goroutine.
package opqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("operation queue is closed")

// Op is one unit of store work. Ops handle their own failures; the queue only
// orders and defers them.
type Op func(ctx context.Context)

type task struct {
	name string
	op   Op
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

// Queue buffers operations while the store is not ready and drains them FIFO
// once it is. It never drops an operation and is unbounded. If an operation
// waits longer than the watchdog timeout for readiness, the queue invokes
// reopen once; the buffer is left intact.
type Queue struct {
	log      *zap.Logger
	reopen   func(ctx context.Context) error
	watchdog time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	cond      *sync.Cond
	buf       []task
	ready     bool
	running   int
	scheduled int
	closed    bool
	timer     *time.Timer
	delayed   map[*time.Timer]struct{}
}

// New starts a queue. reopen is invoked by the watchdog; it may be nil.
func New(reopen func(ctx context.Context) error, watchdog time.Duration, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		log:      zap.NewNop(),
		reopen:   reopen,
		watchdog: watchdog,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		delayed:  make(map[*time.Timer]struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	q.log = q.log.Named("queue")
	go q.work()
	return q
}

// Submit appends op to the queue. When the store is ready and nothing is
// ahead of it, op starts right away; otherwise it waits its turn. Submit
// never blocks on the operation itself.
func (q *Queue) Submit(name string, op Op) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("submit %s: %w", name, ErrClosed)
	}
	q.enqueueLocked(task{name: name, op: op})
	return nil
}

// SubmitAfter submits op once delay has elapsed. The pending submission
// counts as outstanding work for Settle.
func (q *Queue) SubmitAfter(delay time.Duration, name string, op Op) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("submit %s: %w", name, ErrClosed)
	}
	q.scheduled++
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, ok := q.delayed[t]; !ok {
			return
		}
		delete(q.delayed, t)
		q.scheduled--
		if q.closed {
			q.log.Warn("dropping delayed operation after close", zap.String("op", name))
			q.cond.Broadcast()
			return
		}
		q.enqueueLocked(task{name: name, op: op})
	})
	q.delayed[t] = struct{}{}
	return nil
}

func (q *Queue) enqueueLocked(t task) {
	q.buf = append(q.buf, t)
	if !q.ready {
		q.log.Debug("store not ready, operation queued", zap.String("op", t.name), zap.Int("queued", len(q.buf)))
		q.armWatchdogLocked()
	}
	q.cond.Broadcast()
}

// armWatchdogLocked starts the readiness watchdog unless one is pending.
func (q *Queue) armWatchdogLocked() {
	if q.timer != nil || q.reopen == nil || q.watchdog <= 0 {
		return
	}
	q.timer = time.AfterFunc(q.watchdog, q.fireWatchdog)
}

func (q *Queue) fireWatchdog() {
	q.mu.Lock()
	q.timer = nil
	if q.ready || q.closed {
		q.mu.Unlock()
		return
	}
	queued := len(q.buf)
	q.mu.Unlock()

	q.log.Warn("store still not ready, reopening", zap.Duration("after", q.watchdog), zap.Int("queued", queued))
	if err := q.reopen(q.ctx); err != nil {
		q.log.Warn("watchdog reopen failed", zap.Error(err))
	}
}

// SetReady records a readiness transition. Becoming ready releases the
// buffered operations; losing readiness makes new submissions wait again.
func (q *Queue) SetReady(ready bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ready == ready {
		return
	}
	q.ready = ready
	if ready {
		if q.timer != nil {
			q.timer.Stop()
			q.timer = nil
		}
		q.log.Debug("store ready, draining", zap.Int("queued", len(q.buf)))
	} else if len(q.buf) > 0 {
		q.armWatchdogLocked()
	}
	q.cond.Broadcast()
}

// Ready reports the last readiness the queue was told about.
func (q *Queue) Ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready
}

// Len returns the number of buffered operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

func (q *Queue) work() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for !q.closed && (!q.ready || len(q.buf) == 0) {
			q.cond.Wait()
		}
		if !q.ready || len(q.buf) == 0 {
			q.mu.Unlock()
			return
		}
		t := q.buf[0]
		q.buf[0] = task{}
		q.buf = q.buf[1:]
		q.running++
		q.mu.Unlock()

		q.run(t)

		q.mu.Lock()
		q.running--
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (q *Queue) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("operation panicked", zap.String("op", t.name), zap.Any("panic", r))
		}
	}()
	t.op(q.ctx)
}

// Settle blocks until nothing is buffered, running, or scheduled, or until
// ctx is done. Operations submitted by running operations are waited for
// too.
func (q *Queue) Settle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buf) > 0 || q.running > 0 || q.scheduled > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.closed && !q.ready && q.running == 0 && q.scheduled == 0 {
			return ErrClosed
		}
		q.cond.Wait()
	}
	return nil
}

// Close stops accepting work. If the store is ready, buffered operations are
// drained first; otherwise they are dropped with a warning. Delayed
// submissions are cancelled. Close waits for the worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	for t := range q.delayed {
		t.Stop()
		delete(q.delayed, t)
		q.scheduled--
	}
	if !q.ready && len(q.buf) > 0 {
		q.log.Warn("closing with operations still queued", zap.Int("dropped", len(q.buf)))
		q.buf = nil
	}
	q.cond.Broadcast()
	q.mu.Unlock()

	<-q.done
	q.cancel()
}
