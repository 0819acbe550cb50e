package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxResponseBytes = 8 << 20

// NewHTTPClient returns a client with its own connection pool. One client
// is created per adapter and shared by every call it makes.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 8
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// ErrorDecoder pulls a structured error out of a non-2xx body. It reports
// false when the body is not in the provider's error shape.
type ErrorDecoder func(body []byte) (errType, message string, ok bool)

// PostJSON sends payload and returns the raw 2xx body. Failures are mapped
// onto NetworkError, ProviderAPIError or HTTPError.
func PostJSON(ctx context.Context, client *http.Client, provider, endpoint string, headers http.Header, payload any, decode ErrorDecoder) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", provider, err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &NetworkError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Provider: provider, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decode != nil {
			if typ, msg, ok := decode(data); ok {
				return nil, &ProviderAPIError{Provider: provider, StatusCode: resp.StatusCode, Type: typ, Message: msg}
			}
		}
		return nil, &HTTPError{Provider: provider, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// SendFunc performs one provider exchange with the given output budget.
// degraded is set on the compact fallback request.
type SendFunc func(ctx context.Context, req Request, maxTokens int, degraded bool) (Response, error)

// SendWithFallback runs send under the resource timeout. When the reply is
// cut off at the token limit it re-issues exactly once with a compact
// system prompt and the fallback output budget. If the fallback fails
// outright the first truncated reply is returned instead.
func SendWithFallback(ctx context.Context, cfg ProviderConfig, req Request, logger *slog.Logger, send SendFunc) (Response, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ResourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ResourceTimeout)
		defer cancel()
	}

	promptChars := len(req.System.Render()) + len(req.Instruction)
	tokens := cfg.Budget.Clamp(req.Generation.MaxOutputTokens, promptChars)
	resp, err := send(ctx, req, tokens, false)
	if err != nil || !resp.Truncated() {
		return resp, err
	}

	compact := req
	compact.System = req.System.Compact(cfg.CompactWindows)
	logger.Warn("output truncated, retrying with compact prompt",
		"provider", resp.Provider(),
		"max_tokens", tokens,
		"fallback_tokens", cfg.FallbackOutputTokens,
		"windows_kept", len(compact.System.Windows),
	)
	fallback, err := send(ctx, compact, cfg.FallbackOutputTokens, true)
	if err != nil {
		logger.Warn("compact fallback failed, keeping truncated reply", "provider", resp.Provider(), "error", err)
		return resp, nil
	}
	return fallback, nil
}
