package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// Executor Creation Tests
// =============================================================================

func TestExecutor_Create(t *testing.T) {
	e := NewExecutor(4)
	defer e.Close()

	if e.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", e.Workers())
	}
	if !e.IsRunning() {
		t.Error("Executor should be running after creation")
	}
	if got, want := e.QueueCapacity(), 4*SlotsPerWorker; got != want {
		t.Errorf("QueueCapacity() = %d, want %d", got, want)
	}
}

func TestExecutor_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		e := NewExecutor(n)
		if e.Workers() != runtime.NumCPU() {
			t.Errorf("NewExecutor(%d).Workers() = %d, want %d (NumCPU)", n, e.Workers(), runtime.NumCPU())
		}
		e.Close()
	}
}

// =============================================================================
// Draining Tests
// =============================================================================

func TestExecutor_WaitForCompleteRunsEveryTaskOnce(t *testing.T) {
	const workers = 4

	for _, n := range []int{0, 1, workers, 10 * workers} {
		e := NewExecutor(workers)

		var counter atomic.Int64
		for range n {
			e.Submit(func() { counter.Add(1) })
		}
		e.WaitForComplete()

		if counter.Load() != int64(n) {
			t.Errorf("tasks=%d: counter = %d", n, counter.Load())
		}
		if e.Completed() != uint64(n) {
			t.Errorf("tasks=%d: Completed() = %d", n, e.Completed())
		}
		e.Close()
	}
}

func TestExecutor_WaitForCompleteWaitsForSlowTasks(t *testing.T) {
	e := NewExecutor(4)
	defer e.Close()

	var done atomic.Int64
	for range 8 {
		e.Submit(func() {
			time.Sleep(20 * time.Millisecond)
			done.Add(1)
		})
	}
	e.WaitForComplete()

	if done.Load() != 8 {
		t.Errorf("done = %d after WaitForComplete, want 8", done.Load())
	}
}

func TestExecutor_WaitForCompleteRepeated(t *testing.T) {
	e := NewExecutor(3)
	defer e.Close()

	var counter atomic.Int64
	for round := 1; round <= 5; round++ {
		for range 50 {
			e.Submit(func() { counter.Add(1) })
		}
		e.WaitForComplete()
		if got := counter.Load(); got != int64(round*50) {
			t.Fatalf("round %d: counter = %d, want %d", round, got, round*50)
		}
	}
}

func TestExecutor_ManySmallTasks(t *testing.T) {
	e := NewExecutor(4)
	defer e.Close()

	var counter atomic.Int64
	const numTasks = 10000
	for range numTasks {
		e.Submit(func() { counter.Add(1) })
	}
	e.WaitForComplete()

	if counter.Load() != numTasks {
		t.Errorf("counter = %d, want %d", counter.Load(), numTasks)
	}
	if e.Submitted() != numTasks {
		t.Errorf("Submitted() = %d, want %d", e.Submitted(), numTasks)
	}
}

func TestExecutor_SingleWorkerIsFIFO(t *testing.T) {
	e := NewExecutor(1)
	defer e.Close()

	var mu sync.Mutex
	var order []int
	for i := range 20 {
		e.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	e.WaitForComplete()

	if len(order) != 20 {
		t.Fatalf("ran %d tasks, want 20", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

// =============================================================================
// Failure Tests
// =============================================================================

func TestExecutor_PanicDoesNotShrinkPool(t *testing.T) {
	var recovered atomic.Int64
	e := NewExecutor(2, WithPanicHandler(func(any) { recovered.Add(1) }))
	defer e.Close()

	// More panics than workers: a lost worker would deadlock the barrier.
	for range 6 {
		e.Submit(func() { panic("compiler crashed") })
	}
	var counter atomic.Int64
	for range 10 {
		e.Submit(func() { counter.Add(1) })
	}
	e.WaitForComplete()

	if counter.Load() != 10 {
		t.Errorf("counter = %d, want 10", counter.Load())
	}
	if e.Panics() != 6 {
		t.Errorf("Panics() = %d, want 6", e.Panics())
	}
	if recovered.Load() != 6 {
		t.Errorf("handler called %d times, want 6", recovered.Load())
	}
	if e.Completed() != 16 {
		t.Errorf("Completed() = %d, want 16", e.Completed())
	}
}

func TestExecutor_PanickingHandlerKeepsWorker(t *testing.T) {
	var calls atomic.Int64
	e := NewExecutor(1, WithPanicHandler(func(any) {
		calls.Add(1)
		panic("handler crashed")
	}))
	defer e.Close()

	for range 3 {
		e.Submit(func() { panic("compiler crashed") })
	}
	var counter atomic.Int64
	for range 5 {
		e.Submit(func() { counter.Add(1) })
	}

	done := make(chan struct{})
	go func() {
		e.WaitForComplete()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForComplete did not return; the only worker was lost")
	}

	if counter.Load() != 5 {
		t.Errorf("counter = %d, want 5", counter.Load())
	}
	if calls.Load() != 3 {
		t.Errorf("handler called %d times, want 3", calls.Load())
	}
	if e.Panics() != 3 {
		t.Errorf("Panics() = %d, want 3", e.Panics())
	}
	if e.Completed() != 8 {
		t.Errorf("Completed() = %d, want 8", e.Completed())
	}
}

func TestExecutor_SubmitNil(t *testing.T) {
	e := NewExecutor(2)
	defer e.Close()

	e.Submit(nil)
	e.WaitForComplete()

	if e.Submitted() != 0 {
		t.Errorf("Submitted() = %d, want 0", e.Submitted())
	}
	if !e.IsRunning() {
		t.Error("nil submit must not be taken as the shutdown sentinel")
	}
}

// =============================================================================
// Shutdown Tests
// =============================================================================

func TestExecutor_CloseWithoutWork(t *testing.T) {
	e := NewExecutor(8)

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if e.IsRunning() {
		t.Error("Executor should not be running after Close")
	}
}

func TestExecutor_CloseIdempotent(t *testing.T) {
	e := NewExecutor(4)
	e.Close()
	e.Close()
	if e.IsRunning() {
		t.Error("Executor should not be running after Close")
	}
}

func TestExecutor_CloseDrainsPendingWork(t *testing.T) {
	e := NewExecutor(2)

	var counter atomic.Int64
	for range 100 {
		e.Submit(func() { counter.Add(1) })
	}
	e.Close()

	if counter.Load() != 100 {
		t.Errorf("counter = %d after Close, want 100", counter.Load())
	}
}

func TestExecutor_OperationsAfterClose(t *testing.T) {
	e := NewExecutor(4)
	e.Close()

	var executed atomic.Bool
	e.Submit(func() { executed.Store(true) })
	e.WaitForComplete()

	time.Sleep(20 * time.Millisecond)
	if executed.Load() {
		t.Error("work was executed on closed executor")
	}
}

func TestExecutor_NoGoroutineLeak(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	for range 5 {
		e := NewExecutor(4)
		for range 100 {
			e.Submit(func() {})
		}
		e.WaitForComplete()
		e.Close()
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	final := runtime.NumGoroutine()
	if final > baseline+2 {
		t.Errorf("goroutine leak: baseline=%d final=%d", baseline, final)
	}
}
