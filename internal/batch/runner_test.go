package batch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/critic"
	iduuid "github.com/JakeFAU/opportunity-crawler/internal/id/uuid"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
	"github.com/JakeFAU/opportunity-crawler/internal/llm/llmtest"
	"github.com/JakeFAU/opportunity-crawler/internal/progress"
	"github.com/JakeFAU/opportunity-crawler/internal/searchloop"
	"github.com/JakeFAU/opportunity-crawler/internal/selector"
)

type scriptedLoop struct {
	mu       sync.Mutex
	results  map[int][]crawler.Choice
	failures map[int]error
	active   atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	runIDs   []string
}

func (s *scriptedLoop) Run(ctx context.Context, runID string, inst *searchloop.Instance) ([]crawler.Choice, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.mu.Lock()
	s.runIDs = append(s.runIDs, runID)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if err := s.failures[inst.ID]; err != nil {
		return nil, err
	}
	return s.results[inst.ID], nil
}

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) {
	return f.id, f.err
}

type countingEmitter struct {
	mu     sync.Mutex
	stages map[progress.Stage]int
}

func (c *countingEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stages == nil {
		c.stages = map[progress.Stage]int{}
	}
	c.stages[evt.Stage]++
}

const testRunID = "0190f5b4-3c1e-7cc2-9a4e-6f3f8d2a1b00"

func TestRunMergesInInstanceOrder(t *testing.T) {
	t.Parallel()

	loop := &scriptedLoop{
		results: map[int][]crawler.Choice{
			0: {{Link: "https://a.example", Justification: "first"}},
			1: {{Link: "https://b.example", Justification: "second"}, {Link: "https://a.example", Justification: "later"}},
			2: {{Link: "https://c.example", Justification: "third"}},
		},
		failures: map[int]error{},
	}
	emitter := &countingEmitter{}
	r := New(loop, fixedIDs{id: testRunID}, Config{}, emitter, nil)

	got, err := r.Run(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, crawler.Result{
		{Link: "https://a.example", Justification: "first"},
		{Link: "https://b.example", Justification: "second"},
		{Link: "https://c.example", Justification: "third"},
	}, got)
	require.Equal(t, []string{testRunID, testRunID, testRunID}, loop.runIDs)

	require.Equal(t, 1, emitter.stages[progress.StageRunStart])
	require.Equal(t, 3, emitter.stages[progress.StageInstanceStart])
	require.Equal(t, 3, emitter.stages[progress.StageInstanceDone])
	require.Equal(t, 1, emitter.stages[progress.StageRunDone])
}

func TestRunExcludesFailedInstances(t *testing.T) {
	t.Parallel()

	loop := &scriptedLoop{
		results: map[int][]crawler.Choice{
			0: {{Link: "https://a.example", Justification: "never seen"}},
			1: {{Link: "https://b.example", Justification: "kept"}},
		},
		failures: map[int]error{0: searchloop.ErrStepLimitExceeded},
	}
	emitter := &countingEmitter{}
	r := New(loop, fixedIDs{id: testRunID}, Config{Concurrency: 1}, emitter, nil)

	got, err := r.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, crawler.Result{{Link: "https://b.example", Justification: "kept"}}, got)
	require.Equal(t, 1, emitter.stages[progress.StageInstanceError])
}

func TestRunAllFailedIsEmpty(t *testing.T) {
	t.Parallel()

	loop := &scriptedLoop{failures: map[int]error{0: errors.New("x"), 1: errors.New("y")}}
	got, err := New(loop, fixedIDs{id: testRunID}, Config{}, nil, nil).Run(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestRunRespectsConcurrency(t *testing.T) {
	t.Parallel()

	loop := &scriptedLoop{failures: map[int]error{}, delay: 20 * time.Millisecond}
	_, err := New(loop, fixedIDs{id: testRunID}, Config{Concurrency: 2}, nil, nil).Run(context.Background(), 6)
	require.NoError(t, err)
	require.LessOrEqual(t, loop.peak.Load(), int32(2))
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	loop := &scriptedLoop{failures: map[int]error{}, delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(loop, fixedIDs{id: testRunID}, Config{}, nil, nil).Run(ctx, 2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Parallel()

	r := New(&scriptedLoop{}, fixedIDs{id: testRunID}, Config{}, nil, nil)
	_, err := r.Run(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidTries)

	r = New(&scriptedLoop{}, fixedIDs{err: errors.New("entropy")}, Config{}, nil, nil)
	_, err = r.Run(context.Background(), 1)
	require.ErrorContains(t, err, "entropy")
}

type stubSearch struct{}

func (stubSearch) Definition() llm.Tool { return llm.Tool{Name: "web_search"} }

func (stubSearch) Execute(context.Context, llm.ToolCall) (string, error) {
	return `[]`, nil
}

type stubPages struct{}

func (stubPages) Fetch(_ context.Context, link string) (string, error) {
	return "content of " + link, nil
}

// TestTwoInstancesEndToEnd wires the real loop, critic and selector over a
// scripted evaluator: instance 0 sees {p1,p2} and picks p1, instance 1 sees
// {p1,p3} and picks both.
func TestTwoInstancesEndToEnd(t *testing.T) {
	t.Parallel()

	var candidateCalls atomic.Int32
	ev := &llmtest.Evaluator{
		InvokeFunc: func(context.Context, []llm.Message, []llm.Tool) (llm.Message, error) {
			return llm.Message{
				Role:      llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{ID: "c1", Name: "web_search", Arguments: `{"query":"q"}`}},
			}, nil
		},
		StructuredFunc: func(_ context.Context, history []llm.Message, schema *llm.Schema) (json.RawMessage, error) {
			switch schema.Name() {
			case "candidate_list":
				if candidateCalls.Add(1) == 1 {
					return json.RawMessage(`{"websites":[{"link":"p1"},{"link":"p2"}]}`), nil
				}
				return json.RawMessage(`{"websites":[{"link":"p1"},{"link":"p3"}]}`), nil
			case "critique":
				return json.RawMessage(`{"upsides":"on topic","downsides":"small audience"}`), nil
			case "selection":
				if strings.Contains(llmtest.LastUserContent(history), `"p3"`) {
					return json.RawMessage(`{"websites":[
						{"link":"p1","justification":"relevant"},
						{"link":"p3","justification":"good fit"}
					]}`), nil
				}
				return json.RawMessage(`{"websites":[{"link":"p1","justification":"relevant"}]}`), nil
			}
			return nil, errors.New("unexpected schema " + schema.Name())
		},
	}

	crit, err := critic.New(ev, critic.Config{Description: "product", Introduction: "critic"}, nil)
	require.NoError(t, err)
	sel, err := selector.New(ev, selector.Config{Description: "product", Introduction: "selector"}, nil)
	require.NoError(t, err)
	loop, err := searchloop.NewLoop(searchloop.Config{
		Bounds: searchloop.Bounds{Min: 1, Max: 1},
		Prompts: searchloop.Prompts{
			Description: "product",
			Search:      "search",
			SelectPage:  "select",
			DecideLoop:  "decide",
		},
	}, searchloop.Dependencies{
		Evaluator: ev,
		Search:    stubSearch{},
		Fetcher:   stubPages{},
		Critic:    crit,
		Selector:  sel,
	}, nil)
	require.NoError(t, err)

	// sequential instances make the candidate script deterministic
	r := New(loop, iduuid.New(), Config{Concurrency: 1}, nil, nil)
	got, err := r.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, crawler.Result{
		{Link: "p1", Justification: "relevant"},
		{Link: "p3", Justification: "good fit"},
	}, got)
	require.Zero(t, ev.CountSchema("loop_decision"))
	require.Equal(t, 2, ev.CountSchema("selection"))
}
