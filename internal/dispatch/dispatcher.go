package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is delivered to callbacks of tasks submitted to, or still
	// queued in, a closed dispatcher.
	ErrClosed = errors.New("dispatcher closed")

	// ErrTaskPanicked wraps a panic recovered from a task's work function.
	ErrTaskPanicked = errors.New("task panicked")
)

// Result carries the outcome of one task to its callback.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// task is a type-erased unit of work. run executes on a worker goroutine and
// returns the closure that delivers its result on the consumer goroutine.
type task struct {
	run func() func()
	// fail delivers err without running the work (close path).
	fail func(err error) func()
}

// Stats is a point-in-time view of dispatcher counters.
type Stats struct {
	Workers   int
	Submitted uint64
	Completed uint64
	Drained   uint64
	Backlog   int
	Ready     int
}

// Dispatcher runs work on a bounded pool of worker goroutines and hands
// results back to a single consumer goroutine through Drain.
//
// Submit never blocks: tasks wait in an unbounded FIFO backlog until a worker
// is free. Callbacks never run on workers; they run inside Drain, on whichever
// goroutine calls it, in the order their tasks finished.
type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	backlog []task
	closed  bool

	queueMu sync.Mutex
	queue   []func()

	workers int
	wg      sync.WaitGroup

	submitted atomic.Uint64
	completed atomic.Uint64
	drained   atomic.Uint64
}

// New starts a dispatcher with the given number of workers.
// workers < 1 means runtime.NumCPU().
func New(workers int) *Dispatcher {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	d := &Dispatcher{workers: workers}
	d.cond = sync.NewCond(&d.mu)

	d.wg.Add(workers)
	for range workers {
		go d.worker()
	}

	slog.Debug("dispatcher started", "workers", workers)
	return d
}

// Submit schedules work and registers onComplete for its result.
//
// work runs on a worker goroutine with ctx; it must only read the immutable
// inputs it captured. If ctx is already done when a worker picks the task up,
// work is skipped and onComplete receives ctx.Err(). A panic inside work is
// recovered and reported as ErrTaskPanicked.
func Submit[T any](d *Dispatcher, ctx context.Context, work func(context.Context) (T, error), onComplete func(Result[T])) {
	t := task{
		run: func() func() {
			var res Result[T]
			if err := ctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Value, res.Err = safeRun(ctx, work)
			}
			return func() { onComplete(res) }
		},
		fail: func(err error) func() {
			return func() { onComplete(Result[T]{Err: err}) }
		},
	}
	d.submitted.Add(1)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.complete(t.fail(ErrClosed))
		return
	}
	d.backlog = append(d.backlog, t)
	d.mu.Unlock()
	d.cond.Signal()
}

func safeRun[T any](ctx context.Context, work func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return work(ctx)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		t, ok := d.next()
		if !ok {
			return
		}
		d.complete(t.run())
	}
}

// next blocks until a task is available or the dispatcher closes.
func (d *Dispatcher) next() (task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.backlog) == 0 && !d.closed {
		d.cond.Wait()
	}
	if d.closed {
		return task{}, false
	}
	t := d.backlog[0]
	d.backlog[0] = task{}
	d.backlog = d.backlog[1:]
	return t, true
}

func (d *Dispatcher) complete(deliver func()) {
	d.queueMu.Lock()
	d.queue = append(d.queue, deliver)
	d.queueMu.Unlock()
	d.completed.Add(1)
}

// Drain invokes the callbacks of every task that finished before the call.
// Completions that arrive while Drain runs, including those of tasks the
// callbacks submit, are left for the next Drain.
// Returns the number of callbacks invoked.
func (d *Dispatcher) Drain() int {
	d.queueMu.Lock()
	batch := d.queue
	d.queue = nil
	d.queueMu.Unlock()

	for i, deliver := range batch {
		batch[i] = nil
		deliver()
	}
	d.drained.Add(uint64(len(batch)))
	return len(batch)
}

// Outstanding returns submitted tasks whose results are not yet queued.
func (d *Dispatcher) Outstanding() int {
	return int(d.submitted.Load() - d.completed.Load())
}

// Ready returns queued results waiting for the next Drain.
func (d *Dispatcher) Ready() int {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return len(d.queue)
}

// Backlog returns tasks waiting for a free worker.
func (d *Dispatcher) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.backlog)
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Workers:   d.workers,
		Submitted: d.submitted.Load(),
		Completed: d.completed.Load(),
		Drained:   d.drained.Load(),
		Backlog:   d.Backlog(),
		Ready:     d.Ready(),
	}
}

// Close stops the workers after their current task and fails every task
// still in the backlog with ErrClosed. Failed callbacks run on the next
// Drain. Close is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pending := d.backlog
	d.backlog = nil
	d.mu.Unlock()
	d.cond.Broadcast()

	for _, t := range pending {
		d.complete(t.fail(ErrClosed))
	}
	d.wg.Wait()

	slog.Debug("dispatcher stopped", "discarded", len(pending))
}
