package parallel

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/gogpu/progbuild"
)

// PanicHandler receives the value recovered from a panicking task.
type PanicHandler func(recovered any)

// ExecutorOption configures an Executor during creation.
type ExecutorOption func(*Executor)

// WithPanicHandler installs a callback invoked (on the worker goroutine)
// whenever a task panics. The worker keeps running afterwards, even if the
// handler itself panics.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.onPanic = h
	}
}

// Executor is a fixed pool of worker goroutines draining a shared Queue.
//
// Tasks are delivered in submission order: the pool as a whole pops them
// FIFO, although two tasks may complete in either order. A task never
// propagates failure through the executor; panics are recovered at the
// dispatch boundary so the pool never loses a worker.
//
// Thread safety: Submit, WaitForComplete and Close are meant to be called
// from a single producer goroutine. Counters may be read from anywhere.
type Executor struct {
	// workers is the number of worker goroutines.
	workers int

	// queue is shared by all workers.
	queue *Queue

	// wg waits for all workers to exit.
	wg sync.WaitGroup

	// running indicates whether the executor is accepting work.
	running atomic.Bool

	// barrierMu serializes WaitForComplete so barrier rounds never interleave.
	barrierMu sync.Mutex

	onPanic PanicHandler

	submitted atomic.Uint64
	completed atomic.Uint64
	panics    atomic.Uint64
}

// NewExecutor creates an executor with the specified number of workers.
// If workers is 0 or negative, runtime.NumCPU() is used.
// The workers start immediately and block waiting for work.
func NewExecutor(workers int, opts ...ExecutorOption) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	e := &Executor{
		workers: workers,
		queue:   NewQueue(workers * SlotsPerWorker),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.running.Store(true)

	e.wg.Add(workers)
	for i := range workers {
		go e.worker(i)
	}

	return e
}

// worker pops tasks until it receives the nil sentinel.
func (e *Executor) worker(id int) {
	defer e.wg.Done()

	for {
		fn := e.queue.PopBack()
		if fn == nil {
			progbuild.Logger().Debug("parallel: worker exiting", "worker", id)
			return
		}
		fn()
	}
}

// execute runs a submitted task, converting a panic into a counted,
// logged event.
func (e *Executor) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			progbuild.Logger().Warn("parallel: task panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			e.callPanicHandler(r)
		}
		e.completed.Add(1)
	}()
	fn()
}

// callPanicHandler runs the installed handler. A panic inside the handler
// is logged and dropped; it must not take the worker down with it.
func (e *Executor) callPanicHandler(r any) {
	if e.onPanic == nil {
		return
	}
	defer func() {
		if hr := recover(); hr != nil {
			progbuild.Logger().Warn("parallel: panic handler panicked", "panic", fmt.Sprint(hr))
		}
	}()
	e.onPanic(r)
}

// Submit enqueues a task. It blocks while the queue is full.
// The caller keeps ownership of whatever fn captures; the executor only
// calls it. Submitting nil, or submitting after Close, is a no-op.
func (e *Executor) Submit(fn func()) {
	if fn == nil || !e.running.Load() {
		return
	}
	e.submitted.Add(1)
	e.queue.PushFront(func() { e.execute(fn) })
}

// WaitForComplete blocks until every task submitted before the call has
// finished executing.
//
// An empty queue does not prove that workers are idle, since a worker may
// still be inside a task. Instead one barrier task per worker is queued
// behind the real work. A worker that reaches its barrier task parks there,
// so it cannot take a second one; once all workers have entered, every
// earlier task is done. Workers are then released together and the call
// returns only after all of them have left the barrier.
func (e *Executor) WaitForComplete() {
	if !e.running.Load() {
		return
	}

	e.barrierMu.Lock()
	defer e.barrierMu.Unlock()

	var entered, left sync.WaitGroup
	release := make(chan struct{})

	entered.Add(e.workers)
	left.Add(e.workers)
	for range e.workers {
		e.queue.PushFront(func() {
			entered.Done()
			<-release
			left.Done()
		})
	}

	entered.Wait()
	close(release)
	left.Wait()
}

// Close shuts the executor down. Work queued before Close still runs,
// because one nil sentinel per worker is queued behind it; Close then
// waits for all workers to exit.
// Close is safe to call multiple times.
func (e *Executor) Close() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}

	for range e.workers {
		e.queue.PushFront(nil)
	}

	e.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (e *Executor) Workers() int {
	return e.workers
}

// IsRunning returns true if the executor is still accepting work.
func (e *Executor) IsRunning() bool {
	return e.running.Load()
}

// QueueCapacity returns the capacity of the shared queue.
func (e *Executor) QueueCapacity() int {
	return e.queue.Cap()
}

// Submitted returns the number of tasks accepted by Submit.
func (e *Executor) Submitted() uint64 {
	return e.submitted.Load()
}

// Completed returns the number of submitted tasks that have finished,
// including tasks that panicked.
func (e *Executor) Completed() uint64 {
	return e.completed.Load()
}

// Panics returns the number of tasks that panicked.
func (e *Executor) Panics() uint64 {
	return e.panics.Load()
}
