package crawler

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by RunStore and Queue implementations.
var (
	ErrRunNotFound = errors.New("run not found")
	ErrRunExists   = errors.New("run already exists")
	ErrQueueClosed = errors.New("queue closed")
	ErrQueueFull   = errors.New("queue full")
)

// ContentFetcher turns a URL into sanitized plain text. A non-nil error means
// the page could not be used and should be dropped.
type ContentFetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}

// DocumentFetcher retrieves the raw document behind a URL.
type DocumentFetcher interface {
	Fetch(ctx context.Context, link string) (Document, error)
}

// SearchTool performs a web search.
type SearchTool interface {
	Search(ctx context.Context, query string, numResults int) ([]SearchResult, error)
}

// RunStore keeps run metadata and results for the lifetime of the process.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errText string) error
	SaveResult(ctx context.Context, runID string, result Result) error
	GetRun(ctx context.Context, runID string) (Run, error)
	GetResult(ctx context.Context, runID string) (Result, error)
}

// Queue provides enqueue/dequeue semantics for run requests.
type Queue interface {
	Enqueue(ctx context.Context, req RunRequest) error
	Dequeue(ctx context.Context) (RunRequest, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
