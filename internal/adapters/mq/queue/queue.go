// Package queue holds pending snapshot refresh requests.
//
// Enqueue never blocks: when the queue is full the caller is told so and
// can report backpressure instead of piling up fetches.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/kpiboard/pkg/metrics"
)

const defaultQueueCapacity = 8

// RefreshRequest asks for the snapshot to be reloaded.
type RefreshRequest struct {
	ID          string    `json:"id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewRefreshRequest returns a request with a fresh id.
func NewRefreshRequest(reason string, now time.Time) RefreshRequest {
	return RefreshRequest{ID: uuid.NewString(), Reason: reason, RequestedAt: now}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a request. It returns ErrFull when the queue is at
	// capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, r RefreshRequest) error

	// Dequeue returns a channel that receives requests as they arrive. The
	// channel is closed when the queue is closed or ctx is done.
	Dequeue(ctx context.Context) <-chan RefreshRequest

	// Len returns the number of pending requests.
	Len(ctx context.Context) int

	// Close stops accepting requests.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	requests chan RefreshRequest
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.requests = make(chan RefreshRequest, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a request to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r RefreshRequest) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.requests <- r:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.requests))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives requests as they arrive.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan RefreshRequest {
	out := make(chan RefreshRequest)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-q.requests:
				if !ok {
					return
				}
				select {
				case out <- r:
					metrics.RecordQueueDequeue()
					metrics.UpdateQueueSize(len(q.requests))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of pending requests.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.requests)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting requests; pending ones are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.requests)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
