package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var testSchema = MustSchema("test_record", `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"count": {"type": "integer"}
	},
	"required": ["name", "count"],
	"additionalProperties": false
}`)

type testRecord struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type stubEvaluator struct {
	raw json.RawMessage
	err error
}

func (s stubEvaluator) Invoke(context.Context, []Message, ...Tool) (Message, error) {
	return Message{}, errors.New("not used")
}

func (s stubEvaluator) InvokeStructured(context.Context, []Message, *Schema) (json.RawMessage, error) {
	return s.raw, s.err
}

func TestStructuredDecodesConformingRecord(t *testing.T) {
	t.Parallel()

	ev := stubEvaluator{raw: json.RawMessage(`{"name":"ok","count":3}`)}
	got, err := Structured[testRecord](context.Background(), ev, nil, testSchema)
	require.NoError(t, err)
	require.Equal(t, testRecord{Name: "ok", Count: 3}, got)
}

func TestStructuredRejectsNonConformingRecord(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing field": `{"name":"ok"}`,
		"wrong type":    `{"name":"ok","count":"three"}`,
		"extra field":   `{"name":"ok","count":1,"extra":true}`,
		"not json":      `{"name":`,
		"not object":    `[]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ev := stubEvaluator{raw: json.RawMessage(raw)}
			_, err := Structured[testRecord](context.Background(), ev, nil, testSchema)
			require.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestStructuredPropagatesTransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := Structured[testRecord](context.Background(), stubEvaluator{err: boom}, nil, testSchema)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrSchemaMismatch)
}

func TestNewSchemaRejectsInvalidDocument(t *testing.T) {
	t.Parallel()

	_, err := NewSchema("broken", []byte(`{"type": 12}`))
	require.Error(t, err)

	_, err = NewSchema("", []byte(`{}`))
	require.Error(t, err)
}

func TestSchemaAccessors(t *testing.T) {
	t.Parallel()

	require.Equal(t, "test_record", testSchema.Name())
	require.True(t, json.Valid(testSchema.Raw()))
}

func TestParseModel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input   string
		want    Model
		wantErr bool
	}{
		{input: "openai:gpt-4o", want: Model{Provider: "openai", Name: "gpt-4o"}},
		{input: "OpenAI: gpt-4o-mini ", want: Model{Provider: "openai", Name: "gpt-4o-mini"}},
		{input: "gpt-4o", want: Model{Provider: "openai", Name: "gpt-4o"}},
		{input: "anthropic:claude", wantErr: true},
		{input: "openai:", wantErr: true},
		{input: "  ", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseModel(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
	require.Equal(t, "openai:gpt-4o", Model{Provider: "openai", Name: "gpt-4o"}.String())
}

func TestMessageBuilders(t *testing.T) {
	t.Parallel()

	require.Equal(t, Message{Role: RoleSystem, Content: "a"}, System("a"))
	require.Equal(t, Message{Role: RoleUser, Content: "b"}, User("b"))
	require.Equal(t, Message{Role: RoleAssistant, Content: "c"}, Assistant("c"))
	require.Equal(t,
		Message{Role: RoleTool, Content: "d", ToolCallID: "call-1", Name: "web_search"},
		ToolResult("call-1", "web_search", "d"),
	)
}
