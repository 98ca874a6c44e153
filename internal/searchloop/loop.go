// Package searchloop drives one instance of the search, select, fetch and
// critique cycle until the selector summarizes the findings.
package searchloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
	"github.com/JakeFAU/opportunity-crawler/internal/progress"
)

const (
	// DefaultMaxSteps caps the number of states one instance may execute.
	DefaultMaxSteps = 200
	// DefaultFetchConcurrency bounds page fetches within an iteration.
	DefaultFetchConcurrency = 4
)

// Critic scores fetched pages. Pages it cannot critique are omitted.
type Critic interface {
	CritiqueAll(ctx context.Context, pages []crawler.PageContent) []crawler.ScoredCandidate
}

// Selector turns the accumulated critiques into the final choice.
type Selector interface {
	Select(ctx context.Context, critiques []crawler.ScoredCandidate) ([]crawler.Choice, error)
}

// ToolExecutor is the search tool as seen by the evaluator.
type ToolExecutor interface {
	Definition() llm.Tool
	Execute(ctx context.Context, call llm.ToolCall) (string, error)
}

// Prompts are the instructions injected into the instance history.
type Prompts struct {
	Description string
	Search      string
	SelectPage  string
	DecideLoop  string
}

// Config controls a Loop.
type Config struct {
	Bounds           Bounds
	MaxSteps         int
	FetchConcurrency int
	Prompts          Prompts
}

// Dependencies are the collaborators a Loop drives.
type Dependencies struct {
	Evaluator llm.Evaluator
	Search    ToolExecutor
	Fetcher   crawler.ContentFetcher
	Critic    Critic
	Selector  Selector
	Progress  progress.Emitter
}

// Loop executes search-loop instances. A Loop is stateless apart from its
// configuration and may run many instances concurrently.
type Loop struct {
	cfg    Config
	deps   Dependencies
	logger *zap.Logger
}

// NewLoop validates cfg and deps. Bounds are checked first, so a
// misconfigured loop never reaches its collaborators.
func NewLoop(cfg Config, deps Dependencies, logger *zap.Logger) (*Loop, error) {
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	if deps.Evaluator == nil || deps.Search == nil || deps.Fetcher == nil ||
		deps.Critic == nil || deps.Selector == nil {
		return nil, errors.New("searchloop: evaluator, search, fetcher, critic and selector are required")
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}
	if deps.Progress == nil {
		deps.Progress = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{cfg: cfg, deps: deps, logger: logger}, nil
}

// Bounds returns the configured iteration bounds.
func (l *Loop) Bounds() Bounds {
	return l.cfg.Bounds
}

// Run drives inst from INTRODUCE to DONE and returns its selection.
func (l *Loop) Run(ctx context.Context, runID string, inst *Instance) ([]crawler.Choice, error) {
	logger := l.logger.With(zap.String("run_id", runID), zap.Int("instance", inst.ID))
	state := StateIntroduce
	steps := 0
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("instance %d: %w", inst.ID, err)
		}
		steps++
		if steps > l.cfg.MaxSteps {
			return nil, fmt.Errorf("instance %d after %d steps: %w", inst.ID, l.cfg.MaxSteps, ErrStepLimitExceeded)
		}
		logger.Debug("entering state", zap.Stringer("state", state), zap.Int("iteration", inst.Iteration))
		l.emit(runID, progress.Event{
			Instance:  inst.ID,
			Stage:     progress.StageInstanceState,
			State:     state.String(),
			Iteration: inst.Iteration,
		})

		if err := l.execute(ctx, runID, state, inst, logger); err != nil {
			return nil, fmt.Errorf("instance %d %s: %w", inst.ID, state, err)
		}

		next, err := l.next(ctx, state, inst)
		if err != nil {
			return nil, fmt.Errorf("instance %d loop decision: %w", inst.ID, err)
		}
		state = next
	}
	selection, _ := inst.Selection()
	return selection, nil
}

func (l *Loop) execute(ctx context.Context, runID string, state State, inst *Instance, logger *zap.Logger) error {
	switch state {
	case StateIntroduce:
		inst.append(llm.System(l.cfg.Prompts.Description))
		return nil
	case StateSearch:
		return l.search(ctx, inst, logger)
	case StateSelectCandidates:
		return l.selectCandidates(ctx, inst, logger)
	case StateFetch:
		l.fetch(ctx, runID, inst, logger)
		return nil
	case StateCritique:
		return l.critique(ctx, inst, logger)
	case StateSummarize:
		return l.summarize(ctx, inst, logger)
	default:
		return fmt.Errorf("unexpected state %s", state)
	}
}

func (l *Loop) next(ctx context.Context, state State, inst *Instance) (State, error) {
	t := l.cfg.Bounds.Next(state, inst.Iteration)
	if !t.AskEvaluator {
		return t.To, nil
	}
	history := append(cloneHistory(inst.History), llm.User(l.cfg.Prompts.DecideLoop))
	decision, err := llm.Structured[loopDecision](ctx, l.deps.Evaluator, history, decisionSchema)
	if err != nil {
		return 0, err
	}
	return decision.state(), nil
}

func (l *Loop) search(ctx context.Context, inst *Instance, logger *zap.Logger) error {
	prompt := llm.User(l.cfg.Prompts.Search)
	history := append(cloneHistory(inst.History), prompt)
	reply, err := l.deps.Evaluator.Invoke(ctx, history, l.deps.Search.Definition())
	if err != nil {
		return fmt.Errorf("invoke search: %w", err)
	}
	reply.Role = llm.RoleAssistant
	inst.append(prompt, reply)
	inst.Iteration++

	if len(reply.ToolCalls) == 0 {
		logger.Warn("evaluator issued no search", zap.Int("iteration", inst.Iteration))
		return nil
	}
	for _, call := range reply.ToolCalls {
		out, err := l.deps.Search.Execute(ctx, call)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("search tool failed", zap.String("tool", call.Name), zap.Error(err))
			out = "Error: " + err.Error()
		}
		inst.append(llm.ToolResult(call.ID, call.Name, out))
	}
	return nil
}

func (l *Loop) selectCandidates(ctx context.Context, inst *Instance, logger *zap.Logger) error {
	prompt := llm.User(l.cfg.Prompts.SelectPage)
	history := append(cloneHistory(inst.History), prompt)
	out, err := llm.Structured[candidateList](ctx, l.deps.Evaluator, history, candidateSchema)
	if err != nil {
		return err
	}
	if out.Websites == nil {
		out.Websites = []crawler.Page{}
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	inst.append(prompt, llm.Assistant(string(encoded)))
	inst.Pending = out.Websites
	logger.Info("candidates selected", zap.Int("count", len(out.Websites)), zap.Int("iteration", inst.Iteration))
	return nil
}

// fetch loads every pending candidate. Failures are dropped; survivors keep
// candidate order.
func (l *Loop) fetch(ctx context.Context, runID string, inst *Instance, logger *zap.Logger) {
	pending := inst.Pending
	slots := make([]*crawler.PageContent, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.FetchConcurrency)
	for i, page := range pending {
		g.Go(func() error {
			start := time.Now()
			text, err := l.deps.Fetcher.Fetch(gctx, page.Link)
			evt := progress.Event{Instance: inst.ID, URL: page.Link, Dur: time.Since(start)}
			if err != nil {
				logger.Warn("page dropped", zap.String("link", page.Link), zap.Error(err))
				evt.Stage = progress.StageFetchError
				evt.Note = err.Error()
				l.emit(runID, evt)
				return nil
			}
			evt.Stage = progress.StageFetchDone
			evt.Count = len(text)
			l.emit(runID, evt)
			slots[i] = &crawler.PageContent{Page: page, Text: text}
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range slots {
		if s != nil {
			inst.Loaded = append(inst.Loaded, *s)
		}
	}
	inst.Pending = nil
}

func (l *Loop) critique(ctx context.Context, inst *Instance, logger *zap.Logger) error {
	scored := l.deps.Critic.CritiqueAll(ctx, inst.Loaded)
	if scored == nil {
		scored = []crawler.ScoredCandidate{}
	}
	encoded, err := json.Marshal(scored)
	if err != nil {
		return fmt.Errorf("encode critiques: %w", err)
	}
	inst.append(llm.Assistant(string(encoded)))
	inst.Scored = append(inst.Scored, scored...)
	logger.Info("pages critiqued",
		zap.Int("loaded", len(inst.Loaded)),
		zap.Int("critiqued", len(scored)),
		zap.Int("total", len(inst.Scored)),
	)
	inst.Loaded = nil
	return nil
}

func (l *Loop) summarize(ctx context.Context, inst *Instance, logger *zap.Logger) error {
	choices, err := l.deps.Selector.Select(ctx, inst.Scored)
	if err != nil {
		return err
	}
	if err := inst.SetSelection(choices); err != nil {
		return err
	}
	logger.Info("instance summarized", zap.Int("chosen", len(choices)))
	return nil
}

func (l *Loop) emit(runID string, evt progress.Event) {
	evt.RunID = progress.ParseRunID(runID)
	evt.TS = time.Now()
	l.deps.Progress.Emit(evt)
}

func cloneHistory(history []llm.Message) []llm.Message {
	out := make([]llm.Message, len(history), len(history)+1)
	copy(out, history)
	return out
}
