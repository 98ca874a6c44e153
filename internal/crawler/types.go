package crawler

import (
	"net/http"
	"time"
)

// Page identifies a web page by its URL. The link is the deduplication key.
type Page struct {
	Link string `json:"link"`
}

// PageContent pairs a page with the plain text extracted from it.
type PageContent struct {
	Page Page
	Text string
}

// Critique holds the free-text assessment of a page as an ad placement.
type Critique struct {
	Upsides   string `json:"upsides"`
	Downsides string `json:"downsides"`
}

// ScoredCandidate is a page together with its critique.
type ScoredCandidate struct {
	Page     Page     `json:"website"`
	Critique Critique `json:"critique"`
}

// Choice is one entry of a final selection.
type Choice struct {
	Link          string `json:"link"`
	Justification string `json:"justification"`
}

// Page returns the identity of the chosen page.
func (c Choice) Page() Page {
	return Page{Link: c.Link}
}

// Result is the deduplicated output of a batch, in first-seen order.
type Result []Choice

// SearchResult is a single hit returned by a search tool.
type SearchResult struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Document is the raw response returned by a DocumentFetcher.
type Document struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// RunStatus represents the lifecycle state of a batch run submitted to the service.
type RunStatus string

// Run status values kept in the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Run is the metadata recorded for each submitted batch run.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Tries       int        `json:"tries"`
	Submitted   time.Time  `json:"submitted_at"`
	Started     *time.Time `json:"started_at,omitempty"`
	Finished    *time.Time `json:"finished_at,omitempty"`
	ErrorText   string     `json:"error_text,omitempty"`
	ResultCount int        `json:"result_count"`
}

// RunRequest is the unit of work placed on the run queue.
type RunRequest struct {
	RunID     string
	Tries     int
	Submitted int64
}

// RunResult is returned by the API result endpoint.
type RunResult struct {
	Run      Run      `json:"run"`
	Websites []Choice `json:"websites"`
}
