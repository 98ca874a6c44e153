// Package memory provides the bounded in-process run queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
)

// Queue is a bounded in-memory queue of run requests.
type Queue struct {
	ch     chan crawler.RunRequest
	mu     sync.RWMutex
	closed bool
}

// NewQueue constructs a queue holding at most capacity pending requests.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan crawler.RunRequest, capacity)}
}

// Enqueue adds req without blocking. A full queue yields crawler.ErrQueueFull
// so the API can answer 503 instead of holding the request open.
func (q *Queue) Enqueue(ctx context.Context, req crawler.RunRequest) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return crawler.ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	select {
	case q.ch <- req:
		return nil
	default:
		return crawler.ErrQueueFull
	}
}

// Dequeue blocks for the next request.
func (q *Queue) Dequeue(ctx context.Context) (crawler.RunRequest, error) {
	select {
	case <-ctx.Done():
		return crawler.RunRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req, ok := <-q.ch:
		if !ok {
			return crawler.RunRequest{}, crawler.ErrQueueClosed
		}
		return req, nil
	}
}

// Len reports the number of pending requests.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting requests. Pending requests can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
