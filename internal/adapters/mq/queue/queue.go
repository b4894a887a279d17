// Package queue buffers accepted submissions between the HTTP intake and
// the scoring workers.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/stylewars/internal/domain/model"
	"github.com/okian/stylewars/pkg/metrics"
)

// DefaultCapacity is the number of submissions a queue holds by default.
// Every queued submission carries a full 400x300 frame (~480 KB), so this
// keeps retained renders under about 500 MB.
const DefaultCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a submission. It returns false, without blocking, when
	// the queue is full, closed, or ctx is already done.
	Enqueue(ctx context.Context, s model.Submission) bool

	// Dequeue returns a channel yielding submissions in arrival order. The
	// channel is closed once the queue is closed and drained, or ctx ends.
	Dequeue(ctx context.Context) <-chan model.Submission

	// Len returns the number of waiting submissions.
	Len(ctx context.Context) int

	// Close stops intake. Already queued submissions can still be drained.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	items    chan model.Submission
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue holding up to DefaultCapacity
// submissions unless WithCapacity says otherwise.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan model.Submission, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, s model.Submission) bool { //nolint:gocritic // hugeParam: sent by value over the channel
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	// The read lock keeps Close from closing the channel under a send.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.rejected("closed")
		return false
	}
	if ctx.Err() != nil {
		q.rejected("context_cancelled")
		return false
	}

	select {
	case q.items <- s:
		metrics.RecordQueueEnqueue()
		q.observe()
		return true
	default:
		q.rejected("queue_full")
		return false
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Submission {
	out := make(chan model.Submission)
	go func() {
		defer close(out)
		for {
			select {
			case s, ok := <-q.items:
				if !ok {
					return
				}
				select {
				case out <- s:
					metrics.RecordQueueDequeue()
					q.observe()
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.items)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	n := len(q.items)
	metrics.UpdateQueueSize(n)
	metrics.UpdateQueueUtilization(float64(n) / float64(q.capacity))
}

func (q *InMemoryQueue) rejected(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}
