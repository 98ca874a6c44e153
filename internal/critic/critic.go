// Package critic asks the evaluator to assess each fetched page as an
// advertising placement for the product being promoted.
package critic

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
)

// DefaultConcurrency bounds the number of critiques in flight.
const DefaultConcurrency = 4

// Schema is the structured output requested for every page.
var Schema = llm.MustSchema("critique", `{
  "type": "object",
  "properties": {
    "upsides": {"type": "string", "description": "Reasons this page is a good place to advertise the product."},
    "downsides": {"type": "string", "description": "Reasons this page is a poor place to advertise the product."}
  },
  "required": ["upsides", "downsides"],
  "additionalProperties": false
}`)

// Config carries the prompts and fan-out width.
type Config struct {
	// Description is the product description shown to the evaluator.
	Description string
	// Introduction tells the evaluator it is acting as a critic.
	Introduction string
	Concurrency  int
}

// Critic evaluates pages independently and concurrently.
type Critic struct {
	evaluator llm.Evaluator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Critic.
func New(evaluator llm.Evaluator, cfg Config, logger *zap.Logger) (*Critic, error) {
	if evaluator == nil {
		return nil, errors.New("critic: evaluator is required")
	}
	if cfg.Description == "" || cfg.Introduction == "" {
		return nil, errors.New("critic: description and introduction prompts are required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Critic{evaluator: evaluator, cfg: cfg, logger: logger}, nil
}

// CritiqueAll returns one scored candidate per page that was critiqued
// successfully, in input order. Failed critiques are logged and dropped.
func (c *Critic) CritiqueAll(ctx context.Context, pages []crawler.PageContent) []crawler.ScoredCandidate {
	slots := make([]*crawler.ScoredCandidate, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, page := range pages {
		g.Go(func() error {
			critique, err := c.critique(gctx, page)
			if err != nil {
				c.logger.Warn("critique dropped", zap.String("link", page.Page.Link), zap.Error(err))
				return nil
			}
			slots[i] = &crawler.ScoredCandidate{Page: page.Page, Critique: critique}
			return nil
		})
	}
	_ = g.Wait()

	scored := make([]crawler.ScoredCandidate, 0, len(pages))
	for _, s := range slots {
		if s != nil {
			scored = append(scored, *s)
		}
	}
	return scored
}

func (c *Critic) critique(ctx context.Context, page crawler.PageContent) (crawler.Critique, error) {
	history := []llm.Message{
		llm.System(c.cfg.Description),
		llm.System(c.cfg.Introduction),
		llm.User(page.Text),
	}
	out, err := llm.Structured[crawler.Critique](ctx, c.evaluator, history, Schema)
	if err != nil {
		return crawler.Critique{}, fmt.Errorf("critique %s: %w", page.Page.Link, err)
	}
	return out, nil
}
