// Package search exposes a crawler.SearchTool to the evaluator as a callable
// tool and hosts the concrete search providers in its subpackages.
package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/opportunity-crawler/internal/crawler"
	"github.com/JakeFAU/opportunity-crawler/internal/llm"
)

// ToolName is the function name the evaluator sees.
const ToolName = "web_search"

// DefaultNumResults is used when the evaluator omits num_results.
const DefaultNumResults = 10

// ArgsSchema constrains the arguments of a web_search call.
var ArgsSchema = llm.MustSchema("web_search_args", `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1, "description": "The search query."},
		"num_results": {"type": "integer", "minimum": 1, "maximum": 50, "description": "How many results to return."}
	},
	"required": ["query"],
	"additionalProperties": false
}`)

// Args are the decoded arguments of a web_search call.
type Args struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results,omitempty"`
}

// Binding adapts a crawler.SearchTool to evaluator tool calls.
type Binding struct {
	tool           crawler.SearchTool
	defaultResults int
}

// NewBinding wraps tool. A non-positive defaultResults falls back to DefaultNumResults.
func NewBinding(tool crawler.SearchTool, defaultResults int) *Binding {
	if defaultResults <= 0 {
		defaultResults = DefaultNumResults
	}
	return &Binding{tool: tool, defaultResults: defaultResults}
}

// Definition describes the tool for the evaluator.
func (b *Binding) Definition() llm.Tool {
	return llm.Tool{
		Name:        ToolName,
		Description: "Search the web and return a list of results with link, title and snippet.",
		Parameters:  ArgsSchema,
	}
}

// Execute runs one tool call and returns the JSON-encoded results.
func (b *Binding) Execute(ctx context.Context, call llm.ToolCall) (string, error) {
	if call.Name != ToolName {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}
	args, err := decodeArgs(call.Arguments)
	if err != nil {
		return "", err
	}
	if args.NumResults <= 0 {
		args.NumResults = b.defaultResults
	}
	results, err := b.tool.Search(ctx, args.Query, args.NumResults)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", args.Query, err)
	}
	if results == nil {
		results = []crawler.SearchResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("encode search results: %w", err)
	}
	return string(payload), nil
}

func decodeArgs(raw string) (Args, error) {
	if raw == "" {
		raw = "{}"
	}
	if err := ArgsSchema.Validate([]byte(raw)); err != nil {
		return Args{}, err
	}
	var args Args
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return Args{}, fmt.Errorf("decode %s arguments: %w", ToolName, err)
	}
	return args, nil
}
