// Package dispatcher accepts run submissions and fans queued runs out to a
// pool of workers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/worker"
)

// ErrInvalidTries rejects a submission without instances.
var ErrInvalidTries = errors.New("tries must be at least 1")

// Dispatcher owns the submission path and the worker pool.
type Dispatcher struct {
	queue   crawler.Queue
	store   crawler.RunStore
	ids     crawler.IDGenerator
	clock   crawler.Clock
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(
	queue crawler.Queue,
	store crawler.RunStore,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	workers []*worker.Worker,
) *Dispatcher {
	return &Dispatcher{queue: queue, store: store, ids: ids, clock: clock, workers: workers}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Go(func() { w.Run(ctx) })
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit records a queued run for tries instances and places it on the
// queue. A run that cannot be queued is marked failed before the error is
// returned, so its status stays queryable.
func (d *Dispatcher) Submit(ctx context.Context, tries int) (crawler.Run, error) {
	if tries < 1 {
		return crawler.Run{}, fmt.Errorf("%w: got %d", ErrInvalidTries, tries)
	}
	runID, err := d.ids.NewID()
	if err != nil {
		return crawler.Run{}, fmt.Errorf("allocate run id: %w", err)
	}
	now := d.clock.Now()
	run := crawler.Run{ID: runID, Status: crawler.RunStatusQueued, Tries: tries, Submitted: now}
	if err := d.store.CreateRun(ctx, run); err != nil {
		return crawler.Run{}, fmt.Errorf("create run: %w", err)
	}
	if err := d.Enqueue(ctx, crawler.RunRequest{RunID: runID, Tries: tries, Submitted: now.Unix()}); err != nil {
		if markErr := d.store.UpdateRunStatus(context.WithoutCancel(ctx), runID, crawler.RunStatusFailed, err.Error()); markErr != nil {
			return run, errors.Join(err, fmt.Errorf("mark run failed: %w", markErr))
		}
		return run, err
	}
	return run, nil
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, req crawler.RunRequest) error {
	if err := d.queue.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
