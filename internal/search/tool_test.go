package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
)

type fakeSearchTool struct {
	results []crawler.SearchResult
	err     error
	query   string
	num     int
}

func (f *fakeSearchTool) Search(_ context.Context, query string, num int) ([]crawler.SearchResult, error) {
	f.query = query
	f.num = num
	return f.results, f.err
}

func TestBindingExecuteDefaultsNumResults(t *testing.T) {
	t.Parallel()

	tool := &fakeSearchTool{results: []crawler.SearchResult{{Link: "https://a.example", Title: "A"}}}
	b := NewBinding(tool, 0)

	out, err := b.Execute(context.Background(), llm.ToolCall{
		ID: "c1", Name: ToolName, Arguments: `{"query":"bike forums"}`,
	})
	require.NoError(t, err)
	require.Equal(t, "bike forums", tool.query)
	require.Equal(t, DefaultNumResults, tool.num)

	var decoded []crawler.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, tool.results, decoded)
}

func TestBindingExecuteHonorsNumResults(t *testing.T) {
	t.Parallel()

	tool := &fakeSearchTool{}
	b := NewBinding(tool, 5)

	out, err := b.Execute(context.Background(), llm.ToolCall{
		Name: ToolName, Arguments: `{"query":"x","num_results":3}`,
	})
	require.NoError(t, err)
	require.Equal(t, 3, tool.num)
	require.Equal(t, "[]", out)
}

func TestBindingExecuteRejectsBadCalls(t *testing.T) {
	t.Parallel()

	b := NewBinding(&fakeSearchTool{}, 0)
	cases := []llm.ToolCall{
		{Name: "other_tool", Arguments: `{"query":"x"}`},
		{Name: ToolName, Arguments: `{}`},
		{Name: ToolName, Arguments: `{"query":""}`},
		{Name: ToolName, Arguments: `{"query":"x","num_results":0}`},
		{Name: ToolName, Arguments: `not json`},
	}
	for _, call := range cases {
		_, err := b.Execute(context.Background(), call)
		require.Error(t, err, call.Arguments)
	}
}

func TestBindingExecutePropagatesSearchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("rate limited")
	b := NewBinding(&fakeSearchTool{err: boom}, 0)
	_, err := b.Execute(context.Background(), llm.ToolCall{Name: ToolName, Arguments: `{"query":"x"}`})
	require.ErrorIs(t, err, boom)
}

func TestBindingDefinition(t *testing.T) {
	t.Parallel()

	def := NewBinding(&fakeSearchTool{}, 0).Definition()
	require.Equal(t, ToolName, def.Name)
	require.Same(t, ArgsSchema, def.Parameters)
}
