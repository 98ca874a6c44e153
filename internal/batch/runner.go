// Package batch runs several independent search-loop instances and merges
// their selections.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/progress"
	"github.com/JakeFAU/opportunity-crawler/internal/searchloop"
)

// ErrInvalidTries rejects a batch without instances.
var ErrInvalidTries = errors.New("tries must be at least 1")

// InstanceRunner drives a single instance to completion.
type InstanceRunner interface {
	Run(ctx context.Context, runID string, inst *searchloop.Instance) ([]crawler.Choice, error)
}

// Config controls instance fan-out. A non-positive Concurrency runs every
// instance at once.
type Config struct {
	Concurrency int
}

// Runner executes batches.
type Runner struct {
	loop     InstanceRunner
	ids      crawler.IDGenerator
	cfg      Config
	progress progress.Emitter
	logger   *zap.Logger
}

// New constructs a Runner.
func New(
	loop InstanceRunner,
	ids crawler.IDGenerator,
	cfg Config,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Runner {
	if emitter == nil {
		emitter = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{loop: loop, ids: ids, cfg: cfg, progress: emitter, logger: logger}
}

// Run executes tries instances under a fresh run id.
func (r *Runner) Run(ctx context.Context, tries int) (crawler.Result, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("allocate run id: %w", err)
	}
	return r.RunWithID(ctx, runID, tries)
}

// RunWithID executes tries instances and returns their deduplicated
// selections in instance order. Failed instances are left out; the error is
// non-nil only if ctx ends before the batch completes.
func (r *Runner) RunWithID(ctx context.Context, runID string, tries int) (crawler.Result, error) {
	if tries < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTries, tries)
	}
	logger := r.logger.With(zap.String("run_id", runID))
	logger.Info("batch started", zap.Int("tries", tries))
	start := time.Now()
	r.emit(runID, progress.Event{Instance: progress.RunLevel, Stage: progress.StageRunStart, Count: tries})

	limit := r.cfg.Concurrency
	if limit <= 0 || limit > tries {
		limit = tries
	}
	selections := make([][]crawler.Choice, tries)

	// instances never return errors so one failure cannot cancel the rest
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range tries {
		g.Go(func() error {
			selections[i] = r.runInstance(ctx, runID, i, logger)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn("batch canceled", zap.Error(err))
		return nil, fmt.Errorf("batch %s: %w", runID, err)
	}

	result := crawler.Dedupe(selections...)
	r.emit(runID, progress.Event{
		Instance: progress.RunLevel,
		Stage:    progress.StageRunDone,
		Count:    len(result),
		Dur:      time.Since(start),
	})
	logger.Info("batch finished", zap.Int("websites", len(result)), zap.Duration("duration", time.Since(start)))
	return result, nil
}

func (r *Runner) runInstance(ctx context.Context, runID string, id int, logger *zap.Logger) []crawler.Choice {
	start := time.Now()
	r.emit(runID, progress.Event{Instance: id, Stage: progress.StageInstanceStart})

	choices, err := r.loop.Run(ctx, runID, searchloop.NewInstance(id))
	if err != nil {
		logger.Warn("instance failed", zap.Int("instance", id), zap.Error(err))
		r.emit(runID, progress.Event{
			Instance: id,
			Stage:    progress.StageInstanceError,
			Dur:      time.Since(start),
			Note:     err.Error(),
		})
		return nil
	}
	r.emit(runID, progress.Event{
		Instance: id,
		Stage:    progress.StageInstanceDone,
		Count:    len(choices),
		Dur:      time.Since(start),
	})
	return choices
}

func (r *Runner) emit(runID string, evt progress.Event) {
	evt.RunID = progress.ParseRunID(runID)
	evt.TS = time.Now()
	r.progress.Emit(evt)
}
