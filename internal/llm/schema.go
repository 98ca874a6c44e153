package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaMismatch is returned when evaluator output does not conform to the
// requested schema.
var ErrSchemaMismatch = errors.New("evaluator output does not match schema")

// Schema is a compiled JSON Schema with the raw document kept for providers
// that need to forward it.
type Schema struct {
	name     string
	raw      json.RawMessage
	compiled *jsonschema.Schema
}

// NewSchema compiles raw under the given name.
func NewSchema(name string, raw []byte) (*Schema, error) {
	if name == "" {
		return nil, errors.New("schema name is required")
	}
	resource := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{
		name:     name,
		raw:      append(json.RawMessage(nil), raw...),
		compiled: compiled,
	}, nil
}

// MustSchema is like NewSchema but panics on error. It is meant for package
// level schema literals.
func MustSchema(name, raw string) *Schema {
	s, err := NewSchema(name, []byte(raw))
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// Raw returns the schema document.
func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// Validate checks that data is JSON conforming to the schema.
func (s *Schema) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", ErrSchemaMismatch, s.name, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, s.name, err)
	}
	return nil
}
