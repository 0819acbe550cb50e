package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/config"
	"github.com/1broseidon/winpilot/internal/constraint"
	"github.com/1broseidon/winpilot/internal/pipeline"
	"github.com/1broseidon/winpilot/internal/platform"
	"github.com/1broseidon/winpilot/internal/tiling"
	"github.com/1broseidon/winpilot/internal/toolschema"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeSnapshot(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "snapshot.yaml")
	err := platform.SaveSnapshot(path, platform.Snapshot{
		Displays: []tiling.Display{{Index: 0, Name: "eDP-1", Bounds: tiling.Rect{Width: 1440, Height: 900}}},
		Windows: []tiling.WindowState{
			{AppID: "Safari", WindowID: "10", Frame: tiling.Rect{Width: 1440, Height: 900}},
			{AppID: "Terminal", WindowID: "11", Frame: tiling.Rect{X: 100, Y: 100, Width: 600, Height: 400}, Layer: 1},
		},
	})
	if err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	return path
}

func toolCall(id, name, args string) string {
	return fmt.Sprintf(`{"id":%q,"type":"function","function":{"name":%q,"arguments":%q}}`, id, name, args)
}

// fakeOpenAI answers every chat completion with the given tool calls.
func fakeOpenAI(t *testing.T, calls *atomic.Int32, toolCalls ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[%s]}}]}`,
			strings.Join(toolCalls, ","))
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, fmt.Sprintf(`provider: openai
providers:
  openai:
    base_url: %s
    api_key: sk-test
log_level: error
`, baseURL))
	return path
}

func TestRunArrangeAppliesPassingLayout(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	server := fakeOpenAI(t, &calls,
		toolCall("1", "move_window", `{"app":"Safari","position":"left","size":"half"}`),
		toolCall("2", "move_window", `{"app":"Terminal","position":"right","size":"half"}`),
	)
	cfgPath := writeConfig(t, dir, server.URL)
	snapPath := writeSnapshot(t, dir)

	code := runArrange([]string{"--config", cfgPath, "--snapshot", snapPath, "--format", "yaml", "browser", "left,", "terminal", "right"})
	if code != exitOK {
		t.Fatalf("exit code = %d, want %d", code, exitOK)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one provider call, got %d", calls.Load())
	}
}

func TestRunArrangeReportsFailedValidation(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	server := fakeOpenAI(t, &calls,
		toolCall("1", "move_window", `{"app":"Terminal","position":"full"}`),
	)
	cfgPath := writeConfig(t, dir, server.URL)
	snapPath := writeSnapshot(t, dir)

	code := runArrange([]string{"--config", cfgPath, "--snapshot", snapPath, "--format", "json", "make the terminal huge"})
	if code != exitNotPassed {
		t.Fatalf("exit code = %d, want %d", code, exitNotPassed)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected three attempts, got %d", calls.Load())
	}
}

func TestRunArrangeUsageErrors(t *testing.T) {
	if code := runArrange(nil); code != exitUsage {
		t.Fatalf("missing instruction: exit code = %d", code)
	}
	if code := runArrange([]string{"--no-such-flag"}); code != exitUsage {
		t.Fatalf("bad flag: exit code = %d", code)
	}
	if code := runArrange([]string{"--help"}); code != exitOK {
		t.Fatalf("help: exit code = %d", code)
	}
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	snapPath := writeSnapshot(t, dir)
	cfgPath := filepath.Join(dir, "missing.yaml")

	good := filepath.Join(dir, "good.yaml")
	writeFile(t, good, "- action: move\n  target: Safari\n  position: left\n- action: move\n  target: Terminal\n  position: right\n")
	if code := runCheck([]string{"--config", cfgPath, "--snapshot", snapPath, "--format", "yaml", good}); code != exitOK {
		t.Fatalf("good layout: exit code = %d", code)
	}

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "- action: move\n  target: Terminal\n  position: full\n")
	if code := runCheck([]string{"--config", cfgPath, "--snapshot", snapPath, "--format", "yaml", bad}); code != exitNotPassed {
		t.Fatalf("occluding layout: exit code = %d", code)
	}

	if code := runCheck([]string{"--snapshot", snapPath}); code != exitUsage {
		t.Fatalf("missing file argument: exit code = %d", code)
	}
}

func TestReadCommandsValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cmds.yaml")
	writeFile(t, path, "- action: move\n  target: Safari\n- action: close\n  target: Mail\n- action: teleport\n  target: Mail\n")
	_, err := readCommands(path)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "command 0") || !strings.Contains(msg, "command 2") || strings.Contains(msg, "command 1") {
		t.Fatalf("unexpected error %q", msg)
	}
}

func TestPlacement(t *testing.T) {
	layer, display, focus := 2, 1, true
	c := command.Command{
		Action:     command.ActionMove,
		Target:     "Safari",
		CustomSize: &command.Extent{Width: 50, Height: 100},
		Layer:      &layer,
		Display:    &display,
		Focus:      &focus,
	}
	if got := placement(c); got != "50%x100%, display 1, layer 2, focus" {
		t.Fatalf("placement = %q", got)
	}
	if got := placement(command.Command{Position: command.PositionLeft, Size: command.SizeThird}); got != "left, third" {
		t.Fatalf("placement = %q", got)
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, format: formatTable}
	err := p.arrangement(pipeline.Result{
		Commands: []command.Command{{Action: command.ActionMove, Target: "Safari", Position: command.PositionLeft}},
		Passed:   false,
		Attempts: 3,
		Violations: []constraint.Violation{
			{WindowKey: "Terminal#11", ActualArea: 42, RequiredArea: 10000},
		},
		Diagnostics: []string{"attempt 1: model said: ok"},
	})
	if err != nil {
		t.Fatalf("arrangement: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"failed validation", "after 3 attempt(s)", "ACTION", "Safari", "left", "Terminal#11", "10000", "model said: ok"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinterYAMLDocuments(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf, format: formatYAML}
	if err := p.arrangement(pipeline.Result{Passed: true, Attempts: 1}); err != nil {
		t.Fatalf("arrangement: %v", err)
	}
	if err := p.operations([]platform.Op{{Kind: "close", WindowID: "7"}}); err != nil {
		t.Fatalf("operations: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "passed: true") || !strings.Contains(out, "---") || !strings.Contains(out, "- close 7") {
		t.Fatalf("unexpected yaml:\n%s", out)
	}

	bad := &printer{w: &buf, format: "xml"}
	if err := bad.steps(nil); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestWriteCatalog(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCatalog(&buf, toolschema.DefaultCatalog()); err != nil {
		t.Fatalf("writeCatalog: %v", err)
	}
	var entries []struct {
		Name       string         `json:"name"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if len(entries) != len(toolschema.DefaultCatalog()) {
		t.Fatalf("expected %d entries, got %d", len(toolschema.DefaultCatalog()), len(entries))
	}
	found := false
	for _, e := range entries {
		if e.Name == "move_window" {
			found = e.Parameters["type"] == "object"
		}
	}
	if !found {
		t.Fatalf("move_window schema missing or not an object")
	}
}

func TestNewAdapterFollowsProvider(t *testing.T) {
	for _, name := range []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGemini} {
		cfg := config.DefaultConfig()
		cfg.Provider = name
		p := cfg.Providers[name]
		p.APIKey = "key-" + name
		cfg.Providers[name] = p

		adapter, err := newAdapter(cfg, nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if adapter.Name() != name {
			t.Fatalf("adapter name = %q, want %q", adapter.Name(), name)
		}
	}

	cfg := config.DefaultConfig()
	p := cfg.Providers[config.ProviderOpenAI]
	p.APIKeyEnv = "WINPILOT_TEST_UNSET_KEY"
	cfg.Providers[config.ProviderOpenAI] = p
	if _, err := newAdapter(cfg, nil); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestFormatSource(t *testing.T) {
	cases := map[string]config.Source{
		"default":              {Kind: config.SourceDefault},
		"file:/etc/a.yaml":     {Kind: config.SourceFile, File: "/etc/a.yaml"},
		"file:/etc/a.yaml:3:5": {Kind: config.SourceFile, File: "/etc/a.yaml", Line: 3, Column: 5},
		"file":                 {Kind: config.SourceFile},
	}
	for want, src := range cases {
		if got := formatSource(src); got != want {
			t.Fatalf("formatSource(%+v) = %q, want %q", src, got, want)
		}
	}
}
