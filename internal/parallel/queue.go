package parallel

// SlotsPerWorker is the number of queue slots reserved per worker.
// The queue capacity of an Executor is Workers() * SlotsPerWorker.
const SlotsPerWorker = 1024

// Queue is a bounded blocking queue of tasks.
//
// Producers insert at the front and consumers remove from the back, so
// items leave the queue in the order they were pushed. A nil task is a
// valid item: the Executor uses it as the shutdown sentinel.
//
// Thread safety: Queue is safe for any number of concurrent producers and
// consumers.
type Queue struct {
	items chan func()
}

// NewQueue creates a queue holding at most capacity items.
// If capacity is 0 or negative, a single slot is used.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{items: make(chan func(), capacity)}
}

// PushFront inserts fn at the front of the queue.
// It blocks while the queue is full.
func (q *Queue) PushFront(fn func()) {
	q.items <- fn
}

// PopBack removes and returns the item at the back of the queue.
// It blocks while the queue is empty.
func (q *Queue) PopBack() func() {
	return <-q.items
}

// Len returns the number of queued items.
// This is an approximation when other goroutines use the queue concurrently.
func (q *Queue) Len() int {
	return len(q.items)
}

// Cap returns the fixed capacity of the queue.
func (q *Queue) Cap() int {
	return cap(q.items)
}
