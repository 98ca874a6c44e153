package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Evaluator is a language model collaborator.
type Evaluator interface {
	// Invoke continues the conversation, optionally with tools bound. The
	// returned message may carry tool calls instead of content.
	Invoke(ctx context.Context, history []Message, tools ...Tool) (Message, error)
	// InvokeStructured continues the conversation and returns a JSON record
	// that the provider was asked to shape after schema.
	InvokeStructured(ctx context.Context, history []Message, schema *Schema) (json.RawMessage, error)
}

// Structured runs a structured call, validates the record against schema and
// decodes it into T. Any non-conforming output yields ErrSchemaMismatch.
func Structured[T any](ctx context.Context, ev Evaluator, history []Message, schema *Schema) (T, error) {
	var out T
	raw, err := ev.InvokeStructured(ctx, history, schema)
	if err != nil {
		return out, fmt.Errorf("invoke %s: %w", schema.Name(), err)
	}
	if err := schema.Validate(raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s: %v", ErrSchemaMismatch, schema.Name(), err)
	}
	return out, nil
}
