// Package llmtest provides a scriptable llm.Evaluator for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/JakeFAU/opportunity-crawler/internal/llm"
)

// Call records one evaluator invocation.
type Call struct {
	Schema  string
	History []llm.Message
	Tools   []string
}

// Evaluator dispatches to the configured functions and records every call.
// It is safe for concurrent use.
type Evaluator struct {
	InvokeFunc     func(ctx context.Context, history []llm.Message, tools []llm.Tool) (llm.Message, error)
	StructuredFunc func(ctx context.Context, history []llm.Message, schema *llm.Schema) (json.RawMessage, error)

	mu    sync.Mutex
	calls []Call
}

// Invoke implements llm.Evaluator.
func (e *Evaluator) Invoke(ctx context.Context, history []llm.Message, tools ...llm.Tool) (llm.Message, error) {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	e.record(Call{History: cloneHistory(history), Tools: names})
	if e.InvokeFunc == nil {
		return llm.Message{}, errors.New("llmtest: InvokeFunc not set")
	}
	return e.InvokeFunc(ctx, history, tools)
}

// InvokeStructured implements llm.Evaluator.
func (e *Evaluator) InvokeStructured(
	ctx context.Context,
	history []llm.Message,
	schema *llm.Schema,
) (json.RawMessage, error) {
	e.record(Call{Schema: schema.Name(), History: cloneHistory(history)})
	if e.StructuredFunc == nil {
		return nil, errors.New("llmtest: StructuredFunc not set")
	}
	return e.StructuredFunc(ctx, history, schema)
}

// Calls returns a copy of the recorded calls.
func (e *Evaluator) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CountSchema reports how many structured calls used the named schema.
// An empty name counts plain Invoke calls.
func (e *Evaluator) CountSchema(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.Schema == name {
			n++
		}
	}
	return n
}

func (e *Evaluator) record(c Call) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
}

func cloneHistory(history []llm.Message) []llm.Message {
	return append([]llm.Message(nil), history...)
}

// LastUserContent returns the content of the last user message in history.
func LastUserContent(history []llm.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
