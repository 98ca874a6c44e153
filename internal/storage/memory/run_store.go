// Package memory provides the in-process run store used by the run service.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
)

// RunStore keeps runs and their results in process memory.
type RunStore struct {
	mu      sync.RWMutex
	clock   crawler.Clock
	runs    map[string]crawler.Run
	results map[string]crawler.Result
}

// NewRunStore constructs a RunStore stamping transitions with clock.
func NewRunStore(clock crawler.Clock) *RunStore {
	return &RunStore{
		clock:   clock,
		runs:    make(map[string]crawler.Run),
		results: make(map[string]crawler.Result),
	}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run crawler.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("create run %s: %w", run.ID, crawler.ErrRunExists)
	}
	if run.Status == "" {
		run.Status = crawler.RunStatusQueued
	}
	if run.Submitted.IsZero() {
		run.Submitted = s.clock.Now()
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRunStatus moves a run to status, stamping start and finish times.
func (s *RunStore) UpdateRunStatus(_ context.Context, runID string, status crawler.RunStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("update run %s: %w", runID, crawler.ErrRunNotFound)
	}
	run.Status = status
	run.ErrorText = errText
	now := s.clock.Now()
	if status == crawler.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if isTerminal(status) {
		run.Finished = pointerTime(now)
	}
	s.runs[runID] = run
	return nil
}

// SaveResult records the websites chosen by a run.
func (s *RunStore) SaveResult(_ context.Context, runID string, result crawler.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("save result %s: %w", runID, crawler.ErrRunNotFound)
	}
	stored := make(crawler.Result, len(result))
	copy(stored, result)
	s.results[runID] = stored
	run.ResultCount = len(stored)
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (crawler.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return crawler.Run{}, fmt.Errorf("get run %s: %w", runID, crawler.ErrRunNotFound)
	}
	return run, nil
}

// GetResult returns a copy of the stored result. Runs without a saved result
// yield an empty slice.
func (s *RunStore) GetResult(_ context.Context, runID string) (crawler.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("get result %s: %w", runID, crawler.ErrRunNotFound)
	}
	out := make(crawler.Result, len(s.results[runID]))
	copy(out, s.results[runID])
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

func isTerminal(status crawler.RunStatus) bool {
	switch status {
	case crawler.RunStatusSucceeded, crawler.RunStatusFailed, crawler.RunStatusCanceled:
		return true
	default:
		return false
	}
}
