package gemini

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/winpilot/internal/llm"
	"github.com/1broseidon/winpilot/internal/toolschema"
)

func newTestClient(server *httptest.Server) *Client {
	cfg := llm.ProviderConfig{APIKey: "g-test", CompactWindows: 2}.WithDefaults()
	return &Client{
		baseURL: server.URL,
		model:   "gemini-test",
		apiKey:  cfg.APIKey,
		cfg:     cfg,
		client:  server.Client(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testRequest() llm.Request {
	return llm.Request{
		Instruction: "focus mail and minimize music",
		System: llm.SystemPrompt{
			Instructions: "You arrange windows.",
			Geometry:     "display 0: 1920x1080",
			Windows:      []string{"Mail", "Music", "Notes", "Calendar"},
			Context:      "Preferences: none",
		},
		Tools:      toolschema.DefaultCatalog(),
		Generation: llm.Generation{Temperature: 0.5, MaxOutputTokens: 1500, ForceToolCall: true},
	}
}

func TestSendRendersGeminiDialect(t *testing.T) {
	var payload generateRequest
	var path, key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"finishReason":"STOP","content":{"role":"model","parts":[
			{"text":"Done. "},
			{"functionCall":{"name":"focus_window","args":{"app":"Mail"}}},
			{"functionCall":{"id":"fc-2","name":"minimize_window","args":{"app":"Music"}}}
		]}}]}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server).Send(context.Background(), testRequest())
	require.NoError(t, err)

	require.Equal(t, "/v1beta/models/gemini-test:generateContent", path)
	require.Equal(t, "g-test", key)
	require.NotNil(t, payload.SystemInstruction)
	require.Contains(t, payload.SystemInstruction.Parts[0].Text, "Calendar")
	require.Equal(t, "focus mail and minimize music", payload.Contents[0].Parts[0].Text)
	require.NotNil(t, payload.ToolConfig)
	require.Equal(t, "ANY", payload.ToolConfig.FunctionCallingConfig.Mode)
	require.Equal(t, 1500, payload.GenerationConfig.MaxOutputTokens)

	require.Len(t, payload.Tools, 1)
	decls := payload.Tools[0].FunctionDeclarations
	require.Len(t, decls, 7)
	move := decls[0].Parameters
	require.Equal(t, "OBJECT", move.Type)
	require.Equal(t, []string{"app"}, move.Required)
	require.Equal(t, "STRING", move.Properties["position"].Type)
	require.Equal(t, "enum", move.Properties["position"].Format)
	require.Contains(t, move.Properties["position"].Enum, "top-left")
	require.Equal(t, "NUMBER", move.Properties["x"].Type)
	require.Equal(t, "app", move.PropertyOrdering[0])

	require.Equal(t, "Done. ", resp.Text())
	invs, err := resp.Invocations()
	require.NoError(t, err)
	require.Len(t, invs, 2)
	_, err = uuid.Parse(invs[0].ID)
	require.NoError(t, err, "expected generated uuid, got %q", invs[0].ID)
	require.Equal(t, "fc-2", invs[1].ID)
}

func TestSendFallbackOnMaxTokens(t *testing.T) {
	var payloads []generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload generateRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		payloads = append(payloads, payload)
		_, _ = w.Write([]byte(`{"candidates":[{"finishReason":"MAX_TOKENS","content":{"parts":[{"text":"..."}]}}]}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server).Send(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	require.Equal(t, llm.DefaultCeilingTokens, payloads[1].GenerationConfig.MaxOutputTokens)
	require.NotContains(t, payloads[1].SystemInstruction.Parts[0].Text, "Calendar")
	require.True(t, resp.Truncated())
	require.True(t, resp.Degraded())
	invs, err := resp.Invocations()
	require.NoError(t, err)
	require.Empty(t, invs)
}

func TestSendBlockedPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Send(context.Background(), testRequest())
	var invErr *llm.InvalidResponseError
	require.ErrorAs(t, err, &invErr)
	require.Contains(t, invErr.Reason, "SAFETY")
}

func TestSendStructuredError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Send(context.Background(), testRequest())
	var apiErr *llm.ProviderAPIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "INVALID_ARGUMENT", apiErr.Type)
}
