// Package selector asks the evaluator to pick the best placements from the
// critiqued candidates and justify each pick.
package selector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
)

// Schema is the structured output of the final selection.
var Schema = llm.MustSchema("selection", `{
  "type": "object",
  "properties": {
    "websites": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "link": {"type": "string", "description": "URL of the chosen website."},
          "justification": {"type": "string", "description": "Why this website was chosen."}
        },
        "required": ["link", "justification"],
        "additionalProperties": false
      }
    }
  },
  "required": ["websites"],
  "additionalProperties": false
}`)

// Config carries the selector prompts.
type Config struct {
	Description  string
	Introduction string
}

type selection struct {
	Websites []crawler.Choice `json:"websites"`
}

// Selector performs one structured evaluator call over all critiques.
type Selector struct {
	evaluator llm.Evaluator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Selector.
func New(evaluator llm.Evaluator, cfg Config, logger *zap.Logger) (*Selector, error) {
	if evaluator == nil {
		return nil, errors.New("selector: evaluator is required")
	}
	if cfg.Description == "" || cfg.Introduction == "" {
		return nil, errors.New("selector: description and introduction prompts are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{evaluator: evaluator, cfg: cfg, logger: logger}, nil
}

// Select returns the evaluator's choice of websites. The evaluator is
// consulted even when there are no critiques.
func (s *Selector) Select(ctx context.Context, critiques []crawler.ScoredCandidate) ([]crawler.Choice, error) {
	if critiques == nil {
		critiques = []crawler.ScoredCandidate{}
	}
	payload, err := json.Marshal(critiques)
	if err != nil {
		return nil, fmt.Errorf("encode critiques: %w", err)
	}
	history := []llm.Message{
		llm.System(s.cfg.Description),
		llm.System(s.cfg.Introduction),
		llm.User(string(payload)),
	}
	out, err := llm.Structured[selection](ctx, s.evaluator, history, Schema)
	if err != nil {
		return nil, fmt.Errorf("select websites: %w", err)
	}
	s.logger.Debug("selection complete",
		zap.Int("candidates", len(critiques)),
		zap.Int("chosen", len(out.Websites)),
	)
	if out.Websites == nil {
		return []crawler.Choice{}, nil
	}
	return out.Websites, nil
}
