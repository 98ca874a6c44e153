// Package openaillm implements llm.Evaluator on top of the OpenAI chat
// completions API (or any compatible endpoint).
package openaillm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/JakeFAU/opportunity-crawler/internal/llm"
	"github.com/JakeFAU/opportunity-crawler/internal/metrics"
)

// Config controls the OpenAI client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client implements llm.Evaluator.
type Client struct {
	api         chatAPI
	model       string
	temperature float32
	logger      *zap.Logger
}

// New builds a Client. The model may be given as "openai:<name>" or "<name>".
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	model, err := llm.ParseModel(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	transportCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		transportCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	transportCfg.HTTPClient = &http.Client{Timeout: timeout}
	return newWithAPI(openai.NewClientWithConfig(transportCfg), model.Name, cfg.Temperature, logger), nil
}

func newWithAPI(api chatAPI, model string, temperature float32, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{api: api, model: model, temperature: temperature, logger: logger}
}

// Invoke sends the history with the given tools bound and returns the
// assistant reply, tool calls included.
func (c *Client) Invoke(ctx context.Context, history []llm.Message, tools ...llm.Tool) (llm.Message, error) {
	req := c.baseRequest(history)
	for _, tool := range tools {
		def := &openai.FunctionDefinition{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if tool.Parameters != nil {
			def.Parameters = tool.Parameters.Raw()
		}
		req.Tools = append(req.Tools, openai.Tool{Type: openai.ToolTypeFunction, Function: def})
	}

	resp, err := c.complete(ctx, "tools", req)
	if err != nil {
		return llm.Message{}, err
	}
	return fromChatMessage(resp), nil
}

// InvokeStructured requests a strict json_schema response and returns its raw
// content. Validation against the schema is left to llm.Structured.
func (c *Client) InvokeStructured(
	ctx context.Context,
	history []llm.Message,
	schema *llm.Schema,
) (json.RawMessage, error) {
	req := c.baseRequest(history)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   schema.Name(),
			Schema: schema.Raw(),
			Strict: true,
		},
	}

	resp, err := c.complete(ctx, schema.Name(), req)
	if err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused %s: %s", schema.Name(), resp.Refusal)
	}
	return json.RawMessage(resp.Content), nil
}

func (c *Client) baseRequest(history []llm.Message) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, toChatMessage(m))
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
	}
}

func (c *Client) complete(
	ctx context.Context,
	kind string,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionMessage, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("no choices in completion response")
	}
	metrics.ObserveEvaluatorCall(kind, err, time.Since(start))
	if err != nil {
		c.logger.Debug("chat completion failed", zap.String("kind", kind), zap.Error(err))
		return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion (%s): %w", kind, err)
	}
	c.logger.Debug("chat completion",
		zap.String("kind", kind),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("dur", time.Since(start)),
	)
	return resp.Choices[0].Message, nil
}

func toChatMessage(m llm.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	switch m.Role {
	case llm.RoleSystem:
		out.Role = openai.ChatMessageRoleSystem
	case llm.RoleUser:
		out.Role = openai.ChatMessageRoleUser
	case llm.RoleAssistant:
		out.Role = openai.ChatMessageRoleAssistant
	case llm.RoleTool:
		out.Role = openai.ChatMessageRoleTool
		out.Name = m.Name
	}
	for _, call := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}
	return out
}

func fromChatMessage(m openai.ChatCompletionMessage) llm.Message {
	out := llm.Message{Role: llm.RoleAssistant, Content: m.Content}
	for _, call := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}
