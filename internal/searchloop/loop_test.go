package searchloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
	"github.com/JakeFAU/opportunity-crawler/internal/llm/llmtest"
	"github.com/JakeFAU/opportunity-crawler/internal/progress"
)

var testPrompts = Prompts{
	Description: "We sell solar chargers.",
	Search:      "Search for pages.",
	SelectPage:  "Pick pages.",
	DecideLoop:  "SEARCH or SUMMARIZE?",
}

type fakeTool struct {
	mu    sync.Mutex
	calls []llm.ToolCall
	err   error
}

func (f *fakeTool) Definition() llm.Tool {
	return llm.Tool{Name: "web_search"}
}

func (f *fakeTool) Execute(_ context.Context, call llm.ToolCall) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.err != nil {
		return "", f.err
	}
	return `[{"link":"https://p1.example","title":"p1","snippet":""}]`, nil
}

type fakeFetcher struct {
	fail map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, link string) (string, error) {
	if f.fail[link] {
		return "", errors.New("status 404")
	}
	return "text of " + link, nil
}

type fakeCritic struct {
	mu   sync.Mutex
	seen [][]crawler.PageContent
}

func (f *fakeCritic) CritiqueAll(_ context.Context, pages []crawler.PageContent) []crawler.ScoredCandidate {
	f.mu.Lock()
	f.seen = append(f.seen, pages)
	f.mu.Unlock()
	out := make([]crawler.ScoredCandidate, 0, len(pages))
	for _, p := range pages {
		out = append(out, crawler.ScoredCandidate{Page: p.Page, Critique: crawler.Critique{Upsides: "u", Downsides: "d"}})
	}
	return out
}

type fakeSelector struct {
	err  error
	seen []crawler.ScoredCandidate
}

func (f *fakeSelector) Select(_ context.Context, critiques []crawler.ScoredCandidate) ([]crawler.Choice, error) {
	f.seen = critiques
	if f.err != nil {
		return nil, f.err
	}
	out := make([]crawler.Choice, 0, len(critiques))
	for _, c := range critiques {
		out = append(out, crawler.Choice{Link: c.Page.Link, Justification: "fits"})
	}
	return out, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Stage)
	}
	return out
}

type harness struct {
	ev       *llmtest.Evaluator
	tool     *fakeTool
	fetcher  *fakeFetcher
	critic   *fakeCritic
	selector *fakeSelector
	emitter  *recordingEmitter
}

// newHarness builds collaborators whose evaluator searches once per call,
// proposes candidates from the given lists in turn, and always answers the
// loop decision with decision.
func newHarness(decision string, candidates ...[]string) *harness {
	var (
		mu     sync.Mutex
		picks  int
		search int
	)
	ev := &llmtest.Evaluator{
		InvokeFunc: func(context.Context, []llm.Message, []llm.Tool) (llm.Message, error) {
			mu.Lock()
			defer mu.Unlock()
			search++
			return llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID:        fmt.Sprintf("call-%d", search),
					Name:      "web_search",
					Arguments: `{"query":"solar"}`,
				}},
			}, nil
		},
		StructuredFunc: func(_ context.Context, _ []llm.Message, schema *llm.Schema) (json.RawMessage, error) {
			switch schema.Name() {
			case "candidate_list":
				mu.Lock()
				defer mu.Unlock()
				var links []string
				if picks < len(candidates) {
					links = candidates[picks]
				}
				picks++
				pages := make([]crawler.Page, 0, len(links))
				for _, l := range links {
					pages = append(pages, crawler.Page{Link: l})
				}
				return json.Marshal(candidateList{Websites: pages})
			case "loop_decision":
				return json.RawMessage(fmt.Sprintf(`{"loop_decision":%q}`, decision)), nil
			}
			return nil, fmt.Errorf("unexpected schema %s", schema.Name())
		},
	}
	return &harness{
		ev:       ev,
		tool:     &fakeTool{},
		fetcher:  &fakeFetcher{fail: map[string]bool{}},
		critic:   &fakeCritic{},
		selector: &fakeSelector{},
		emitter:  &recordingEmitter{},
	}
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Evaluator: h.ev,
		Search:    h.tool,
		Fetcher:   h.fetcher,
		Critic:    h.critic,
		Selector:  h.selector,
		Progress:  h.emitter,
	}
}

func (h *harness) loop(t *testing.T, bounds Bounds) *Loop {
	t.Helper()
	l, err := NewLoop(Config{Bounds: bounds, Prompts: testPrompts}, h.deps(), nil)
	require.NoError(t, err)
	return l
}

var runID = uuid.NewString()

func TestRunStopsAtMaxIterations(t *testing.T) {
	t.Parallel()

	h := newHarness("SEARCH")
	inst := NewInstance(0)
	_, err := h.loop(t, Bounds{Min: 1, Max: 3}).Run(context.Background(), runID, inst)
	require.NoError(t, err)

	require.Equal(t, 3, inst.Iteration)
	require.Equal(t, 3, h.ev.CountSchema(""))
	require.Equal(t, 3, h.ev.CountSchema("candidate_list"))
	// asked after iterations 1 and 2 only
	require.Equal(t, 2, h.ev.CountSchema("loop_decision"))
}

func TestRunEnforcesMinIterations(t *testing.T) {
	t.Parallel()

	h := newHarness("SUMMARIZE")
	inst := NewInstance(0)
	_, err := h.loop(t, Bounds{Min: 2, Max: 4}).Run(context.Background(), runID, inst)
	require.NoError(t, err)

	require.Equal(t, 2, inst.Iteration)
	require.Equal(t, 2, h.ev.CountSchema(""))
	require.Equal(t, 1, h.ev.CountSchema("loop_decision"))
}

func TestRunEqualBoundsNeverAsks(t *testing.T) {
	t.Parallel()

	h := newHarness("SEARCH", []string{"https://p1.example"})
	inst := NewInstance(1)
	got, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(context.Background(), runID, inst)
	require.NoError(t, err)
	require.Equal(t, []crawler.Choice{{Link: "https://p1.example", Justification: "fits"}}, got)
	require.Zero(t, h.ev.CountSchema("loop_decision"))

	selection, ok := inst.Selection()
	require.True(t, ok)
	require.Equal(t, got, selection)
}

func TestRunIsolatesFetchFailures(t *testing.T) {
	t.Parallel()

	h := newHarness("SUMMARIZE", []string{"https://p1.example", "https://p2.example", "https://p3.example"})
	h.fetcher.fail["https://p2.example"] = true
	inst := NewInstance(0)
	got, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(context.Background(), runID, inst)
	require.NoError(t, err)

	require.Len(t, h.critic.seen, 1)
	require.Equal(t, []crawler.PageContent{
		{Page: crawler.Page{Link: "https://p1.example"}, Text: "text of https://p1.example"},
		{Page: crawler.Page{Link: "https://p3.example"}, Text: "text of https://p3.example"},
	}, h.critic.seen[0])
	require.Len(t, got, 2)
	require.Empty(t, inst.Pending)
	require.Empty(t, inst.Loaded)
	require.Len(t, inst.Scored, 2)

	stages := h.emitter.stages()
	require.Contains(t, stages, progress.StageFetchError)
	require.Contains(t, stages, progress.StageFetchDone)
}

func TestRunAccumulatesCritiquesAcrossIterations(t *testing.T) {
	t.Parallel()

	h := newHarness("SEARCH", []string{"https://p1.example"}, []string{"https://p2.example"})
	inst := NewInstance(0)
	got, err := h.loop(t, Bounds{Min: 2, Max: 2}).Run(context.Background(), runID, inst)
	require.NoError(t, err)
	require.Len(t, h.critic.seen, 2)
	require.Len(t, h.selector.seen, 2)
	require.Equal(t, "https://p1.example", got[0].Link)
	require.Equal(t, "https://p2.example", got[1].Link)
}

func TestNewLoopRejectsBoundsBeforeWork(t *testing.T) {
	t.Parallel()

	ev := &llmtest.Evaluator{}
	_, err := NewLoop(Config{Bounds: Bounds{Min: 4, Max: 2}}, Dependencies{Evaluator: ev}, nil)
	require.ErrorIs(t, err, ErrInvalidBounds)
	require.Empty(t, ev.Calls())
}

func TestNewLoopRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewLoop(Config{Bounds: Bounds{Min: 1, Max: 1}}, Dependencies{}, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidBounds)
}

func TestRunStepLimit(t *testing.T) {
	t.Parallel()

	h := newHarness("SEARCH")
	l, err := NewLoop(Config{Bounds: Bounds{Min: 1, Max: 1}, MaxSteps: 3, Prompts: testPrompts}, h.deps(), nil)
	require.NoError(t, err)
	_, err = l.Run(context.Background(), runID, NewInstance(0))
	require.ErrorIs(t, err, ErrStepLimitExceeded)
}

func TestRunRecordsToolExchange(t *testing.T) {
	t.Parallel()

	h := newHarness("SUMMARIZE")
	inst := NewInstance(0)
	_, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(context.Background(), runID, inst)
	require.NoError(t, err)

	require.Len(t, h.tool.calls, 1)
	require.Equal(t, "call-1", h.tool.calls[0].ID)

	hist := inst.History
	require.Equal(t, llm.System(testPrompts.Description), hist[0])
	require.Equal(t, llm.User(testPrompts.Search), hist[1])
	require.Equal(t, llm.RoleAssistant, hist[2].Role)
	require.Len(t, hist[2].ToolCalls, 1)
	require.Equal(t, llm.RoleTool, hist[3].Role)
	require.Equal(t, "call-1", hist[3].ToolCallID)
	require.Contains(t, hist[3].Content, "https://p1.example")
	require.Equal(t, llm.User(testPrompts.SelectPage), hist[4])
	require.Equal(t, llm.Assistant(`{"websites":[]}`), hist[5])
	require.Equal(t, llm.Assistant(`[]`), hist[6])

	// the search call saw the description and the search prompt
	first := h.ev.Calls()[0]
	require.Equal(t, []string{"web_search"}, first.Tools)
	require.Len(t, first.History, 2)
}

func TestRunToolErrorReachesHistory(t *testing.T) {
	t.Parallel()

	h := newHarness("SUMMARIZE")
	h.tool.err = errors.New("rate limited")
	inst := NewInstance(0)
	_, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(context.Background(), runID, inst)
	require.NoError(t, err)
	require.Equal(t, llm.RoleTool, inst.History[3].Role)
	require.Equal(t, "Error: rate limited", inst.History[3].Content)
}

func TestRunFailsOnCollaboratorErrors(t *testing.T) {
	t.Parallel()

	t.Run("selector", func(t *testing.T) {
		t.Parallel()
		h := newHarness("SUMMARIZE")
		h.selector.err = errors.New("selector down")
		_, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(context.Background(), runID, NewInstance(0))
		require.ErrorContains(t, err, "selector down")
	})

	t.Run("candidate schema", func(t *testing.T) {
		t.Parallel()
		h := newHarness("SUMMARIZE")
		h.ev.StructuredFunc = func(context.Context, []llm.Message, *llm.Schema) (json.RawMessage, error) {
			return json.RawMessage(`{"websites":[{"url":"https://p1.example"}]}`), nil
		}
		_, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(context.Background(), runID, NewInstance(0))
		require.ErrorIs(t, err, llm.ErrSchemaMismatch)
	})

	t.Run("loop decision", func(t *testing.T) {
		t.Parallel()
		h := newHarness("MAYBE")
		_, err := h.loop(t, Bounds{Min: 1, Max: 2}).Run(context.Background(), runID, NewInstance(0))
		require.ErrorIs(t, err, llm.ErrSchemaMismatch)
	})

	t.Run("search invoke", func(t *testing.T) {
		t.Parallel()
		h := newHarness("SUMMARIZE")
		h.ev.InvokeFunc = func(context.Context, []llm.Message, []llm.Tool) (llm.Message, error) {
			return llm.Message{}, errors.New("503")
		}
		_, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(context.Background(), runID, NewInstance(0))
		require.ErrorContains(t, err, "503")
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		h := newHarness("SUMMARIZE")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(ctx, runID, NewInstance(0))
		require.ErrorIs(t, err, context.Canceled)
		require.Empty(t, h.ev.Calls())
	})
}

func TestRunEmitsStateEvents(t *testing.T) {
	t.Parallel()

	h := newHarness("SUMMARIZE")
	_, err := h.loop(t, Bounds{Min: 1, Max: 1}).Run(context.Background(), runID, NewInstance(2))
	require.NoError(t, err)

	var states []string
	for _, evt := range h.emitter.events {
		require.Equal(t, progress.ParseRunID(runID), evt.RunID)
		require.Equal(t, 2, evt.Instance)
		if evt.Stage == progress.StageInstanceState {
			states = append(states, evt.State)
		}
	}
	require.Equal(t, []string{"INTRODUCE", "SEARCH", "SELECT_CANDIDATES", "FETCH", "CRITIQUE", "SUMMARIZE"}, states)
}
