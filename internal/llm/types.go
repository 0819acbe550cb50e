// Package llm holds the provider-neutral request and response types shared
// by the model adapters.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/toolschema"
)

// Adapter sends one request to a model provider. Implementations are safe
// for concurrent use and hold no per-call state.
type Adapter interface {
	Name() string
	Send(ctx context.Context, req Request) (Response, error)
}

// Generation controls sampling for one request.
type Generation struct {
	Temperature     float64
	MaxOutputTokens int
	// ForceToolCall asks the provider to reject plain-text answers.
	ForceToolCall bool
}

// Request is everything an adapter needs for one call.
type Request struct {
	Instruction string
	System      SystemPrompt
	Tools       toolschema.Catalog
	Generation  Generation
}

// SystemPrompt is the system message split into sections so adapters can
// shorten it on a token-limit fallback without understanding it.
type SystemPrompt struct {
	Instructions string
	Geometry     string
	Windows      []string
	Context      string
}

// Render joins every non-empty section.
func (p SystemPrompt) Render() string {
	var parts []string
	if s := strings.TrimSpace(p.Instructions); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(p.Geometry); s != "" {
		parts = append(parts, "Displays:\n"+s)
	}
	if len(p.Windows) > 0 {
		parts = append(parts, "Windows:\n"+strings.Join(p.Windows, "\n"))
	}
	if s := strings.TrimSpace(p.Context); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}

// Compact keeps the instructions and geometry, drops Context, and keeps at
// most maxWindows inventory lines.
func (p SystemPrompt) Compact(maxWindows int) SystemPrompt {
	out := SystemPrompt{Instructions: p.Instructions, Geometry: p.Geometry}
	if maxWindows < 0 {
		maxWindows = 0
	}
	if len(p.Windows) <= maxWindows {
		out.Windows = append([]string(nil), p.Windows...)
		return out
	}
	out.Windows = append([]string(nil), p.Windows[:maxWindows]...)
	out.Windows = append(out.Windows, fmt.Sprintf("(%d more windows omitted)", len(p.Windows)-maxWindows))
	return out
}

// Response is a provider reply. The set of implementations is closed: each
// adapter package contributes one variant by embedding Meta.
type Response interface {
	Provider() string
	// Text is the free text the model returned alongside or instead of
	// tool calls.
	Text() string
	// Invocations extracts tool calls in the order the model emitted them.
	Invocations() ([]command.ToolInvocation, error)
	// Truncated reports that the reply stopped at the output-token limit.
	Truncated() bool
	// Degraded reports that the reply came from the compact fallback
	// request.
	Degraded() bool
	// FinishReason is the provider's stop reason, verbatim.
	FinishReason() string
	sealed()
}

// Meta carries the fields every Response variant shares.
type Meta struct {
	provider     string
	text         string
	finishReason string
	truncated    bool
	degraded     bool
}

// NewMeta builds the shared part of a response.
func NewMeta(provider, text, finishReason string, truncated, degraded bool) Meta {
	return Meta{
		provider:     provider,
		text:         text,
		finishReason: finishReason,
		truncated:    truncated,
		degraded:     degraded,
	}
}

func (m Meta) Provider() string     { return m.provider }
func (m Meta) Text() string         { return m.text }
func (m Meta) FinishReason() string { return m.finishReason }
func (m Meta) Truncated() bool      { return m.truncated }
func (m Meta) Degraded() bool       { return m.degraded }
func (m Meta) sealed()              {}

// ProviderConfig is the construction-time configuration of an adapter.
type ProviderConfig struct {
	Model   string
	BaseURL string
	APIKey  string

	// RequestTimeout bounds one HTTP exchange; ResourceTimeout bounds a
	// whole Send including the fallback request.
	RequestTimeout  time.Duration
	ResourceTimeout time.Duration

	Budget Budget
	// FallbackOutputTokens is the output budget of the compact fallback
	// request. Zero uses Budget.Ceiling.
	FallbackOutputTokens int
	// CompactWindows is how many inventory lines the fallback keeps.
	CompactWindows int
}

// DefaultRequestTimeout and DefaultResourceTimeout apply when a
// ProviderConfig leaves them unset.
const (
	DefaultRequestTimeout  = 60 * time.Second
	DefaultResourceTimeout = 150 * time.Second
	DefaultCompactWindows  = 10
)

// WithDefaults fills unset fields.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ResourceTimeout <= 0 {
		c.ResourceTimeout = DefaultResourceTimeout
	}
	c.Budget = c.Budget.WithDefaults()
	if c.FallbackOutputTokens <= 0 {
		c.FallbackOutputTokens = c.Budget.Ceiling
	}
	if c.CompactWindows <= 0 {
		c.CompactWindows = DefaultCompactWindows
	}
	return c
}
