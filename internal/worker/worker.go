// Package worker executes queued batch runs.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/metrics"
)

// BatchRunner executes a batch under a caller-chosen run id.
type BatchRunner interface {
	RunWithID(ctx context.Context, runID string, tries int) (crawler.Result, error)
}

// Worker consumes run requests and records their outcome in the run store.
type Worker struct {
	queue  crawler.Queue
	store  crawler.RunStore
	runner BatchRunner
	logger *zap.Logger
}

// New constructs a Worker.
func New(queue crawler.Queue, store crawler.RunStore, runner BatchRunner, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: queue, store: store, runner: runner, logger: logger}
}

// Run blocks, consuming requests until ctx ends or the queue is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued run", zap.String("run_id", req.RunID), zap.Int("tries", req.Tries))
		w.process(ctx, req)
	}
}

func (w *Worker) process(ctx context.Context, req crawler.RunRequest) {
	logger := w.logger.With(zap.String("run_id", req.RunID))
	if err := w.store.UpdateRunStatus(ctx, req.RunID, crawler.RunStatusRunning, ""); err != nil {
		logger.Error("update run status failed", zap.Error(err))
		return
	}

	metrics.IncActiveRuns()
	result, runErr := w.runner.RunWithID(ctx, req.RunID, req.Tries)
	metrics.DecActiveRuns()

	// the final write must land even when the run was canceled
	storeCtx := context.WithoutCancel(ctx)
	status, errText := finalStatus(ctx, runErr)
	if runErr == nil {
		if err := w.store.SaveResult(storeCtx, req.RunID, result); err != nil {
			logger.Error("save result failed", zap.Error(err))
			status, errText = crawler.RunStatusFailed, fmt.Sprintf("save result: %v", err)
		}
	}
	if err := w.store.UpdateRunStatus(storeCtx, req.RunID, status, errText); err != nil {
		logger.Error("final run status update failed", zap.Error(err))
		return
	}
	logger.Info("run finished", zap.String("status", string(status)), zap.Int("websites", len(result)))
}

func finalStatus(ctx context.Context, err error) (crawler.RunStatus, string) {
	switch {
	case err == nil:
		return crawler.RunStatusSucceeded, ""
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return crawler.RunStatusCanceled, err.Error()
	default:
		return crawler.RunStatusFailed, err.Error()
	}
}
