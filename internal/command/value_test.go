package command

import (
	"errors"
	"math"
	"testing"
)

func TestParseArgs_PreservesOrderAndKinds(t *testing.T) {
	args, err := ParseArgs([]byte(`{"app":"Safari","x_percent":12.5,"layer":3,"focus":true}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	keys := args.Keys()
	want := []string{"app", "x_percent", "layer", "focus"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}

	kinds := map[string]Kind{"app": KindString, "x_percent": KindFloat, "layer": KindInt, "focus": KindBool}
	for key, kind := range kinds {
		v, ok := args.Get(key)
		if !ok {
			t.Fatalf("missing %q", key)
		}
		if v.Kind() != kind {
			t.Fatalf("%q: expected kind %s, got %s", key, kind, v.Kind())
		}
	}
}

func TestParseArgs_RejectsNested(t *testing.T) {
	cases := []string{
		`{"rect":{"x":1}}`,
		`{"apps":["a","b"]}`,
	}
	for _, raw := range cases {
		if _, err := ParseArgs([]byte(raw)); !errors.Is(err, ErrUnsupportedValue) {
			t.Fatalf("%s: expected ErrUnsupportedValue, got %v", raw, err)
		}
	}
}

func TestParseArgs_NullMeansAbsent(t *testing.T) {
	args, err := ParseArgs([]byte(`{"app":"Terminal","layer":null,"position":"right"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := args.Keys(); len(got) != 2 || got[0] != "app" || got[1] != "position" {
		t.Fatalf("unexpected keys %v", got)
	}
	if args.Has("layer") {
		t.Fatalf("null argument should be absent")
	}
}

func TestParseArgs_EmptyAndMalformed(t *testing.T) {
	args, err := ParseArgs([]byte("  "))
	if err != nil || len(args) != 0 {
		t.Fatalf("expected empty args, got %v, %v", args, err)
	}
	if _, err := ParseArgs([]byte(`{"app":"Saf`)); err == nil {
		t.Fatalf("expected error for truncated json")
	}
	if _, err := ParseArgs([]byte(`[1,2]`)); err == nil {
		t.Fatalf("expected error for non-object")
	}
}

func TestValueConversions(t *testing.T) {
	if n, ok := FloatValue(4).Int(); !ok || n != 4 {
		t.Fatalf("expected whole float to convert to 4, got %d %v", n, ok)
	}
	if _, ok := FloatValue(4.5).Int(); ok {
		t.Fatalf("expected fractional float to refuse int conversion")
	}
	for _, f := range []float64{1e30, -1e30, math.MaxInt64, math.Inf(1), math.NaN()} {
		if n, ok := FloatValue(f).Int(); ok {
			t.Fatalf("expected %g to refuse int conversion, got %d", f, n)
		}
	}
	if n, ok := FloatValue(-1 << 62).Int(); !ok || n != -1<<62 {
		t.Fatalf("expected large in-range float to convert, got %d %v", n, ok)
	}
	if f, ok := StringValue(" 33.3 ").Float(); !ok || f != 33.3 {
		t.Fatalf("expected quoted number to convert, got %v %v", f, ok)
	}
	if _, ok := IntValue(1).Str(); ok {
		t.Fatalf("expected int to refuse string conversion")
	}
	if b, ok := StringValue("true").Bool(); !ok || !b {
		t.Fatalf("expected \"true\" to convert")
	}
	if _, ok := (Value{}).Float(); ok {
		t.Fatalf("expected invalid value to refuse conversion")
	}
}

func TestArgsMarshalJSON_LastDuplicateWins(t *testing.T) {
	args := Args{
		{Key: "app", Value: StringValue("Mail")},
		{Key: "layer", Value: IntValue(1)},
		{Key: "app", Value: StringValue("Notes")},
	}
	data, err := args.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `{"app":"Notes","layer":1}` {
		t.Fatalf("unexpected json %s", got)
	}
}

func TestCommandValidate(t *testing.T) {
	layer := 2
	cases := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"symbolic move", Command{Action: ActionMove, Target: "Safari", Position: PositionLeft, Size: SizeHalf}, false},
		{"custom move", Command{Action: ActionMove, Target: "Safari", CustomPosition: &Point{}, CustomSize: &Extent{Width: 3, Height: 3}}, false},
		{"bare move", Command{Action: ActionMove, Target: "Safari", Layer: &layer}, true},
		{"mixed move", Command{Action: ActionCompositePosition, Target: "Safari", Position: PositionLeft, CustomSize: &Extent{Width: 10, Height: 10}}, true},
		{"missing target", Command{Action: ActionFocus}, true},
		{"unknown position", Command{Action: ActionMove, Target: "Safari", Position: "nowhere"}, true},
		{"resize without size", Command{Action: ActionResize, Target: "Safari"}, true},
		{"zero custom size", Command{Action: ActionMove, Target: "Safari", CustomSize: &Extent{}}, true},
		{"close", Command{Action: ActionClose, Target: "Safari"}, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitTarget(t *testing.T) {
	app, win := SplitTarget("Terminal#0x3a00007")
	if app != "Terminal" || win != "0x3a00007" {
		t.Fatalf("unexpected split %q %q", app, win)
	}
	app, win = SplitTarget("Safari")
	if app != "Safari" || win != "" {
		t.Fatalf("unexpected split %q %q", app, win)
	}
}
