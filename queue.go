package gate

import (
	"fmt"
	"sync"
)

// Queue holds jobs that passed admission. Every job in a queue was
// admitted by the SecurityGateway for some provider; the queue never
// re-evaluates admission.
type Queue interface {
	// Enqueue appends a job to the tail.
	Enqueue(job Job)

	// Dequeue atomically removes and returns up to max jobs from the
	// head. It returns fewer (including zero) if the queue is shorter and
	// never blocks. A non-positive max is a configuration error.
	Dequeue(max int) ([]Job, error)

	// Peek returns the head job without removing it. The second return
	// is false when the queue is empty.
	Peek() (Job, bool)

	// Size returns the current queue length.
	Size() int
}

// MemoryQueue is an in-memory FIFO Queue safe for concurrent callers.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []Job
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue appends a job to the tail.
func (q *MemoryQueue) Enqueue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

// Dequeue removes and returns up to max jobs from the head.
func (q *MemoryQueue) Dequeue(max int) ([]Job, error) {
	if max <= 0 {
		return nil, fmt.Errorf("dequeue %d: %w", max, ErrInvalidDequeueLimit)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := max
	if n > len(q.jobs) {
		n = len(q.jobs)
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]Job, n)
	copy(out, q.jobs[:n])
	q.jobs = append(q.jobs[:0], q.jobs[n:]...)
	return out, nil
}

// Peek returns the head job without removing it.
func (q *MemoryQueue) Peek() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return Job{}, false
	}
	return q.jobs[0], true
}

// Size returns the current queue length.
func (q *MemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
