package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/tiling"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Displays: []tiling.Display{
			{Index: 0, Name: "eDP-1", Bounds: tiling.Rect{Width: 1440, Height: 900}},
			{Index: 1, Name: "HDMI-1", Bounds: tiling.Rect{X: 1440, Width: 1920, Height: 1080}},
		},
		Windows: []tiling.WindowState{
			{AppID: "Safari", WindowID: "10", Frame: tiling.Rect{Width: 1440, Height: 900}},
			{AppID: "Terminal", WindowID: "11", Frame: tiling.Rect{X: 10, Y: 10, Width: 600, Height: 400}, Layer: 1, Minimized: true},
			{AppID: "Mail", Frame: tiling.Rect{Width: 800, Height: 600}},
		},
	}
}

func intp(v int) *int { return &v }

func opStrings(ops []Op) string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return strings.Join(out, "\n")
}

func TestExecuteTranslatesCommandsToOperations(t *testing.T) {
	cmds := []command.Command{
		{Action: command.ActionMove, Target: "Safari", Position: command.PositionLeft},
		{Action: command.ActionMove, Target: "Terminal", Position: command.PositionRight, Display: intp(1)},
		{Action: command.ActionFocus, Target: "Mail"},
		{Action: command.ActionClose, Target: "Ghost"},
		{Action: command.ActionResize, Target: "Safari", Size: command.SizeThird, Layer: intp(5)},
		{Action: command.ActionMinimize, Target: "Safari"},
	}
	var rec Recorder
	steps, err := Execute(context.Background(), &rec, cmds, testSnapshot())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := strings.Join([]string{
		"move-resize 10 0,0 720x900",
		"activate 11",
		"move-resize 11 2400,0 960x1080",
		"move-resize 10 0,0 480x900",
		"raise 10",
		"minimize 10",
	}, "\n")
	if got := opStrings(rec.Ops()); got != want {
		t.Fatalf("ops =\n%s\nwant\n%s", got, want)
	}

	if len(steps) != len(cmds) {
		t.Fatalf("expected %d steps, got %d", len(cmds), len(steps))
	}
	if steps[2].Skipped != "window has no id" || steps[2].Window != "Mail" {
		t.Fatalf("unexpected step for Mail: %+v", steps[2])
	}
	if steps[3].Skipped != "no matching window" {
		t.Fatalf("unexpected step for Ghost: %+v", steps[3])
	}
}

type failingDriver struct {
	Recorder
}

func (f *failingDriver) MoveResize(id string, _ tiling.Rect) error {
	return errors.New("BadWindow")
}

func TestExecuteContinuesAfterFailure(t *testing.T) {
	cmds := []command.Command{
		{Action: command.ActionMove, Target: "Safari", Position: command.PositionLeft},
		{Action: command.ActionClose, Target: "Terminal"},
	}
	var d failingDriver
	steps, err := Execute(context.Background(), &d, cmds, testSnapshot())
	if err == nil || !strings.Contains(err.Error(), "BadWindow") {
		t.Fatalf("expected joined failure, got %v", err)
	}
	if steps[0].Err == nil || steps[1].Err != nil {
		t.Fatalf("unexpected steps %+v", steps)
	}
	if got := opStrings(d.Ops()); got != "close 11" {
		t.Fatalf("unexpected ops %q", got)
	}
}

func TestExecuteStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var rec Recorder
	_, err := Execute(ctx, &rec, []command.Command{{Action: command.ActionClose, Target: "Safari"}}, testSnapshot())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(rec.Ops()) != 0 {
		t.Fatalf("expected no ops")
	}
}

func TestSnapshotRoundTripAndFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := SaveSnapshot(path, testSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	b := &FileBackend{Path: path}
	snap, err := b.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Windows) != 3 || snap.Windows[1].Key() != "Terminal#11" || !snap.Windows[1].Minimized {
		t.Fatalf("unexpected windows %+v", snap.Windows)
	}
	if snap.Displays[1].Bounds.X != 1440 {
		t.Fatalf("unexpected displays %+v", snap.Displays)
	}
	if err := b.Close("10"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := opStrings(b.Ops()); got != "close 10" {
		t.Fatalf("unexpected ops %q", got)
	}
}

func TestLoadSnapshotRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"no displays":     "windows: []\n",
		"unknown display": "displays:\n  - index: 0\n    bounds: {width: 100, height: 100}\nwindows:\n  - app_id: A\n    display: 3\n",
		"missing app":     "displays:\n  - index: 0\n    bounds: {width: 100, height: 100}\nwindows:\n  - frame: {width: 10, height: 10}\n",
		"empty bounds":    "displays:\n  - index: 0\n",
	}
	for name, data := range cases {
		path := filepath.Join(t.TempDir(), "snapshot.yaml")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadSnapshot(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
