// Package anthropic adapts the Messages API tool-use interface.
package anthropic

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
	providerName   = "anthropic"
	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"
	defaultModel   = "claude-sonnet-4-5"
	stopMaxTokens  = "max_tokens"
)

// Client implements llm.Adapter for the Anthropic Messages API.
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
	headers.Set("x-api-key", c.apiKey)
	headers.Set("anthropic-version", defaultVersion)

	c.logger.Debug("sending request",
		"model", c.model,
		"max_tokens", maxTokens,
		"temperature", req.Generation.Temperature,
		"tools", len(payload.Tools),
		"degraded", degraded,
	)
	body, err := llm.PostJSON(ctx, c.client, providerName, c.baseURL+"/v1/messages", headers, payload, decodeError)
	if err != nil {
		return nil, err
	}

	var wire messagesResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &llm.InvalidResponseError{Provider: providerName, Reason: "decode body", Err: err}
	}
	if wire.Content == nil {
		return nil, &llm.InvalidResponseError{Provider: providerName, Reason: "missing content"}
	}
	text, calls := splitContent(wire.Content)
	truncated := wire.StopReason == stopMaxTokens
	return Response{
		Meta:  llm.NewMeta(providerName, text, wire.StopReason, truncated, degraded),
		calls: calls,
	}, nil
}

func (c *Client) buildPayload(req llm.Request, maxTokens int) (messagesRequest, error) {
	tools, err := toTools(req.Tools)
	if err != nil {
		return messagesRequest{}, err
	}
	temperature := req.Generation.Temperature
	payload := messagesRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		System:      req.System.Render(),
		Temperature: &temperature,
		Tools:       tools,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: req.Instruction}},
		}},
	}
	if len(tools) > 0 && req.Generation.ForceToolCall {
		payload.ToolChoice = &toolChoice{Type: "any"}
	}
	return payload, nil
}

func toTools(catalog toolschema.Catalog) ([]tool, error) {
	out := make([]tool, 0, len(catalog))
	for _, spec := range catalog {
		schema, err := spec.RawSchema()
		if err != nil {
			return nil, err
		}
		out = append(out, tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

func splitContent(blocks []contentBlock) (string, []contentBlock) {
	var text strings.Builder
	var calls []contentBlock
	for _, block := range blocks {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			calls = append(calls, block)
		}
	}
	return text.String(), calls
}

func decodeError(body []byte) (string, string, bool) {
	var payload struct {
		Type  string `json:"type"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil || payload.Error.Message == "" {
		return "", "", false
	}
	return payload.Error.Type, payload.Error.Message, true
}

// Response is the Anthropic variant of llm.Response.
type Response struct {
	llm.Meta
	calls []contentBlock
}

func (r Response) Invocations() ([]command.ToolInvocation, error) {
	raw := make([]llm.RawCall, 0, len(r.calls))
	for _, block := range r.calls {
		raw = append(raw, llm.RawCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
	}
	return llm.ParseCalls(providerName, raw, r.Truncated())
}

type messagesRequest struct {
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens"`
	System      string      `json:"system,omitempty"`
	Messages    []message   `json:"messages"`
	Tools       []tool      `json:"tools,omitempty"`
	ToolChoice  *toolChoice `json:"tool_choice,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}
