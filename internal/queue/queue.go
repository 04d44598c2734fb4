// Package queue implements a bounded-concurrency task runner that dequeues
// waiting work by priority, FIFO within equal priority. Every outbound
// upstream call in the gateway runs through one of these.
package queue

import (
	"container/heap"
	"context"
	"sync"
)

// DefaultMaxConcurrent bounds simultaneous task execution.
const DefaultMaxConcurrent = 5

// Task is a unit of queued work. It is consumed exactly once and never
// persisted.
type Task func(ctx context.Context) (any, error)

type result struct {
	value any
	err   error
}

type item struct {
	priority int
	seq      uint64
	ctx      context.Context
	fn       Task
	done     chan result
	// abandoned is set when the caller stopped waiting; the dispatcher
	// skips such items instead of burning a slot on them.
	abandoned bool
}

// Queue admits at most maxConcurrent tasks at once. There is no cap on the
// number of waiting tasks and no cancellation once a task starts running;
// context cancellation is honored only while the caller is still waiting
// for a slot.
type Queue struct {
	mu            sync.Mutex
	waiting       itemHeap
	seq           uint64
	running       int
	maxConcurrent int
}

// New creates a queue with the given concurrency bound.
func New(maxConcurrent int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Queue{maxConcurrent: maxConcurrent}
}

// Add enqueues fn at the given priority and blocks until it completes or
// ctx is done. Higher priorities are dequeued first; equal priorities run
// in submission order.
func (q *Queue) Add(ctx context.Context, priority int, fn Task) (any, error) {
	it := &item{
		priority: priority,
		ctx:      ctx,
		fn:       fn,
		done:     make(chan result, 1),
	}

	q.mu.Lock()
	q.seq++
	it.seq = q.seq
	heap.Push(&q.waiting, it)
	q.dispatchLocked()
	q.mu.Unlock()

	select {
	case res := <-it.done:
		return res.value, res.err
	case <-ctx.Done():
		q.mu.Lock()
		it.abandoned = true
		q.mu.Unlock()
		// The task may have started in the meantime; prefer its result
		// so a completed call is not reported as canceled.
		select {
		case res := <-it.done:
			return res.value, res.err
		default:
			return nil, ctx.Err()
		}
	}
}

// InFlight returns the number of currently executing tasks.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Waiting returns the number of tasks queued but not yet running.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting.Len()
}

// dispatchLocked starts waiting tasks while slots are free. Caller holds
// the lock.
func (q *Queue) dispatchLocked() {
	for q.running < q.maxConcurrent && q.waiting.Len() > 0 {
		it := heap.Pop(&q.waiting).(*item)
		if it.abandoned || it.ctx.Err() != nil {
			continue
		}
		q.running++
		go q.run(it)
	}
}

func (q *Queue) run(it *item) {
	value, err := it.fn(it.ctx)
	it.done <- result{value: value, err: err}

	q.mu.Lock()
	q.running--
	q.dispatchLocked()
	q.mu.Unlock()
}

// Do enqueues a typed task, wrapping Add with the assertion back to T.
func Do[T any](ctx context.Context, q *Queue, priority int, fn func(ctx context.Context) (T, error)) (T, error) {
	value, err := q.Add(ctx, priority, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, ok := value.(T)
	if !ok {
		var zero T
		return zero, err
	}
	return v, nil
}

// itemHeap orders by priority descending, then sequence ascending.
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
