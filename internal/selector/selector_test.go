package selector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
	"github.com/JakeFAU/opportunity-crawler/internal/llm/llmtest"
)

var cfg = Config{Description: "Trail shoes.", Introduction: "You pick placements."}

func TestSelectReturnsEvaluatorChoice(t *testing.T) {
	t.Parallel()

	ev := &llmtest.Evaluator{
		StructuredFunc: func(context.Context, []llm.Message, *llm.Schema) (json.RawMessage, error) {
			return json.RawMessage(`{"websites":[
				{"link":"https://b.example","justification":"runners"},
				{"link":"https://a.example","justification":"hikers"}
			]}`), nil
		},
	}
	s, err := New(ev, cfg, nil)
	require.NoError(t, err)

	critiques := []crawler.ScoredCandidate{
		{Page: crawler.Page{Link: "https://a.example"}, Critique: crawler.Critique{Upsides: "u", Downsides: "d"}},
		{Page: crawler.Page{Link: "https://b.example"}, Critique: crawler.Critique{Upsides: "u2", Downsides: "d2"}},
	}
	got, err := s.Select(context.Background(), critiques)
	require.NoError(t, err)
	require.Equal(t, []crawler.Choice{
		{Link: "https://b.example", Justification: "runners"},
		{Link: "https://a.example", Justification: "hikers"},
	}, got)

	calls := ev.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "selection", calls[0].Schema)
	require.Len(t, calls[0].History, 3)
	require.Equal(t, llm.System("Trail shoes."), calls[0].History[0])
	require.Equal(t, llm.System("You pick placements."), calls[0].History[1])

	var sent []crawler.ScoredCandidate
	require.NoError(t, json.Unmarshal([]byte(calls[0].History[2].Content), &sent))
	require.Equal(t, critiques, sent)
}

func TestSelectEmptyStillAsks(t *testing.T) {
	t.Parallel()

	ev := &llmtest.Evaluator{
		StructuredFunc: func(context.Context, []llm.Message, *llm.Schema) (json.RawMessage, error) {
			return json.RawMessage(`{"websites":[]}`), nil
		},
	}
	s, err := New(ev, cfg, nil)
	require.NoError(t, err)

	got, err := s.Select(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
	require.Equal(t, 1, ev.CountSchema("selection"))
	require.Equal(t, "[]", ev.Calls()[0].History[2].Content)
}

func TestSelectFailures(t *testing.T) {
	t.Parallel()

	transport := &llmtest.Evaluator{
		StructuredFunc: func(context.Context, []llm.Message, *llm.Schema) (json.RawMessage, error) {
			return nil, errors.New("timeout")
		},
	}
	s, err := New(transport, cfg, nil)
	require.NoError(t, err)
	_, err = s.Select(context.Background(), nil)
	require.Error(t, err)

	mismatch := &llmtest.Evaluator{
		StructuredFunc: func(context.Context, []llm.Message, *llm.Schema) (json.RawMessage, error) {
			return json.RawMessage(`{"websites":[{"link":"https://a.example"}]}`), nil
		},
	}
	s, err = New(mismatch, cfg, nil)
	require.NoError(t, err)
	_, err = s.Select(context.Background(), nil)
	require.ErrorIs(t, err, llm.ErrSchemaMismatch)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, cfg, nil)
	require.Error(t, err)
	_, err = New(&llmtest.Evaluator{}, Config{}, nil)
	require.Error(t, err)
}
