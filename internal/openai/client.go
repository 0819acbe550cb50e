// Package openai adapts the Chat Completions function-calling API.
package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/llm"
	"github.com/1broseidon/winpilot/internal/toolschema"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
	finishLength   = "length"
)

// Client implements llm.Adapter for OpenAI and compatible servers.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	cfg     llm.ProviderConfig
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg llm.ProviderConfig, logger *slog.Logger) *Client {
	cfg = cfg.WithDefaults()
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		apiKey:  cfg.APIKey,
		cfg:     cfg,
		client:  llm.NewHTTPClient(cfg.RequestTimeout),
		logger:  logger.With("provider", providerName),
	}
}

func (c *Client) Name() string { return providerName }

func (c *Client) Send(ctx context.Context, req llm.Request) (llm.Response, error) {
	return llm.SendWithFallback(ctx, c.cfg, req, c.logger, c.send)
}

func (c *Client) send(ctx context.Context, req llm.Request, maxTokens int, degraded bool) (llm.Response, error) {
	payload, err := c.buildPayload(req, maxTokens)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	if c.apiKey != "" {
		headers.Set("Authorization", "Bearer "+c.apiKey)
	}
	c.logger.Debug("sending request",
		"model", c.model,
		"max_tokens", maxTokens,
		"temperature", req.Generation.Temperature,
		"tools", len(payload.Tools),
		"degraded", degraded,
	)
	body, err := llm.PostJSON(ctx, c.client, providerName, c.baseURL+"/v1/chat/completions", headers, payload, decodeError)
	if err != nil {
		return nil, err
	}

	var wire chatResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &llm.InvalidResponseError{Provider: providerName, Reason: "decode body", Err: err}
	}
	if len(wire.Choices) == 0 {
		return nil, &llm.InvalidResponseError{Provider: providerName, Reason: "no choices"}
	}
	choice := wire.Choices[0]
	truncated := choice.FinishReason == finishLength
	return Response{
		Meta:  llm.NewMeta(providerName, choice.Message.Content, choice.FinishReason, truncated, degraded),
		calls: choice.Message.ToolCalls,
	}, nil
}

func (c *Client) buildPayload(req llm.Request, maxTokens int) (chatRequest, error) {
	tools, err := toTools(req.Tools)
	if err != nil {
		return chatRequest{}, err
	}
	temperature := req.Generation.Temperature
	payload := chatRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Tools:       tools,
	}
	if system := req.System.Render(); system != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Instruction})
	if len(tools) > 0 && req.Generation.ForceToolCall {
		payload.ToolChoice = "required"
	}
	return payload, nil
}

func toTools(catalog toolschema.Catalog) ([]tool, error) {
	out := make([]tool, 0, len(catalog))
	for _, spec := range catalog {
		params, err := spec.RawSchema()
		if err != nil {
			return nil, err
		}
		out = append(out, tool{
			Type: "function",
			Function: functionDef{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return out, nil
}

func decodeError(body []byte) (string, string, bool) {
	var payload struct {
		Error *struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil || payload.Error.Message == "" {
		return "", "", false
	}
	typ := payload.Error.Type
	if typ == "" {
		typ = payload.Error.Code
	}
	return typ, payload.Error.Message, true
}

// Response is the OpenAI variant of llm.Response.
type Response struct {
	llm.Meta
	calls []toolCall
}

func (r Response) Invocations() ([]command.ToolInvocation, error) {
	raw := make([]llm.RawCall, 0, len(r.calls))
	for _, call := range r.calls {
		raw = append(raw, llm.RawCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: []byte(call.Function.Arguments),
		})
	}
	return llm.ParseCalls(providerName, raw, r.Truncated())
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []tool        `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type tool struct {
	Type     string      `json:"type"`
	Function functionDef `json:"function"`
}

type functionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type toolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}
