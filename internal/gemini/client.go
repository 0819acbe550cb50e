// Package gemini adapts the Gemini generateContent function-calling API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/llm"
	"github.com/1broseidon/winpilot/internal/toolschema"
)

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
	finishMaxToken = "MAX_TOKENS"
)

// Client implements llm.Adapter for Gemini.
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
	payload := c.buildPayload(req, maxTokens)
	headers := http.Header{}
	if c.apiKey != "" {
		headers.Set("x-goog-api-key", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))

	c.logger.Debug("sending request",
		"model", c.model,
		"max_tokens", maxTokens,
		"temperature", req.Generation.Temperature,
		"degraded", degraded,
	)
	body, err := llm.PostJSON(ctx, c.client, providerName, endpoint, headers, payload, decodeError)
	if err != nil {
		return nil, err
	}

	var wire generateResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &llm.InvalidResponseError{Provider: providerName, Reason: "decode body", Err: err}
	}
	if len(wire.Candidates) == 0 {
		reason := "no candidates"
		if wire.PromptFeedback != nil && wire.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + wire.PromptFeedback.BlockReason
		}
		return nil, &llm.InvalidResponseError{Provider: providerName, Reason: reason}
	}
	candidate := wire.Candidates[0]
	var text strings.Builder
	var calls []functionCall
	for _, part := range candidate.Content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, *part.FunctionCall)
			continue
		}
		text.WriteString(part.Text)
	}
	truncated := candidate.FinishReason == finishMaxToken
	return Response{
		Meta:  llm.NewMeta(providerName, text.String(), candidate.FinishReason, truncated, degraded),
		calls: calls,
	}, nil
}

func (c *Client) buildPayload(req llm.Request, maxTokens int) generateRequest {
	temperature := req.Generation.Temperature
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Instruction}}}},
		GenerationConfig: &generationConfig{
			Temperature:     &temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if system := req.System.Render(); system != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	if decls := toDeclarations(req.Tools); len(decls) > 0 {
		payload.Tools = []tool{{FunctionDeclarations: decls}}
		if req.Generation.ForceToolCall {
			payload.ToolConfig = &toolConfig{FunctionCallingConfig: functionCallingConfig{Mode: "ANY"}}
		}
	}
	return payload
}

func toDeclarations(catalog toolschema.Catalog) []functionDeclaration {
	out := make([]functionDeclaration, 0, len(catalog))
	for _, spec := range catalog {
		params := convertSchema(spec.JSONSchema())
		for _, p := range spec.Params {
			params.PropertyOrdering = append(params.PropertyOrdering, p.Name)
		}
		out = append(out, functionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  params,
		})
	}
	return out
}

// convertSchema re-dialects a JSON Schema into Gemini's OpenAPI subset,
// which spells types in upper case and only accepts string enums.
func convertSchema(s *jsonschema.Schema) *schema {
	if s == nil {
		return nil
	}
	out := &schema{
		Type:        strings.ToUpper(s.Type),
		Description: s.Description,
		Required:    append([]string(nil), s.Required...),
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
	}
	for _, v := range s.Enum {
		if str, ok := v.(string); ok {
			out.Enum = append(out.Enum, str)
		}
	}
	if len(out.Enum) > 0 {
		out.Format = "enum"
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	}
	return out
}

func decodeError(body []byte) (string, string, bool) {
	var payload struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil || payload.Error.Message == "" {
		return "", "", false
	}
	return payload.Error.Status, payload.Error.Message, true
}

// Response is the Gemini variant of llm.Response.
type Response struct {
	llm.Meta
	calls []functionCall
}

// Invocations assigns a random ID to calls the API left unnamed so
// downstream logs can correlate them.
func (r Response) Invocations() ([]command.ToolInvocation, error) {
	raw := make([]llm.RawCall, 0, len(r.calls))
	for _, call := range r.calls {
		id := call.ID
		if id == "" {
			id = uuid.NewString()
		}
		raw = append(raw, llm.RawCall{ID: id, Name: call.Name, Arguments: call.Args})
	}
	return llm.ParseCalls(providerName, raw, r.Truncated())
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	Tools             []tool            `json:"tools,omitempty"`
	ToolConfig        *toolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *functionCall `json:"functionCall,omitempty"`
}

type functionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *schema `json:"parameters,omitempty"`
}

type schema struct {
	Type             string             `json:"type"`
	Format           string             `json:"format,omitempty"`
	Description      string             `json:"description,omitempty"`
	Enum             []string           `json:"enum,omitempty"`
	Properties       map[string]*schema `json:"properties,omitempty"`
	PropertyOrdering []string           `json:"propertyOrdering,omitempty"`
	Required         []string           `json:"required,omitempty"`
	Minimum          *float64           `json:"minimum,omitempty"`
	Maximum          *float64           `json:"maximum,omitempty"`
}

type toolConfig struct {
	FunctionCallingConfig functionCallingConfig `json:"functionCallingConfig"`
}

type functionCallingConfig struct {
	Mode string `json:"mode"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}
