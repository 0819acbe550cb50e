package toolschema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/1broseidon/winpilot/internal/command"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestDefaultCatalogIsValid(t *testing.T) {
	cat := DefaultCatalog()
	require.NoError(t, cat.Validate())
	require.Equal(t, []string{
		"move_window", "resize_window", "position_window", "focus_window",
		"minimize_window", "restore_window", "close_window",
	}, cat.Names())
}

func TestJSONSchemaPreservesRequiredAndEnum(t *testing.T) {
	spec, ok := DefaultCatalog().Lookup("move_window")
	require.True(t, ok)

	raw, err := spec.RawSchema()
	require.NoError(t, err)

	var decoded struct {
		Type       string   `json:"type"`
		Required   []string `json:"required"`
		Properties map[string]struct {
			Type    string   `json:"type"`
			Enum    []string `json:"enum"`
			Minimum *float64 `json:"minimum"`
			Maximum *float64 `json:"maximum"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "object", decoded.Type)
	require.Equal(t, []string{"app"}, decoded.Required)
	require.Contains(t, decoded.Properties["position"].Enum, "bottom-right")
	require.Contains(t, decoded.Properties["size"].Enum, "two-thirds")
	require.Equal(t, "number", decoded.Properties["x"].Type)
	require.NotNil(t, decoded.Properties["width"].Maximum)
	require.Equal(t, 100.0, *decoded.Properties["width"].Maximum)
}

func TestRoundTrip(t *testing.T) {
	cat := DefaultCatalog()
	cmds := []command.Command{
		{Action: command.ActionMove, Target: "Safari", Position: command.PositionLeft, Size: command.SizeHalf},
		{Action: command.ActionMove, Target: "Terminal#0x3a00004", CustomPosition: &command.Point{X: 10, Y: 5}, CustomSize: &command.Extent{Width: 40, Height: 60}, Focus: boolp(true)},
		{Action: command.ActionCompositePosition, Target: "Slack", Position: command.PositionTopRight, Size: command.SizeQuarter, Layer: intp(3), Display: intp(1)},
		{Action: command.ActionResize, Target: "Code", Size: command.SizeTwoThirds},
		{Action: command.ActionResize, Target: "Code", CustomSize: &command.Extent{Width: 50, Height: 50}},
		{Action: command.ActionFocus, Target: "Mail"},
		{Action: command.ActionMinimize, Target: "Spotify"},
		{Action: command.ActionRestore, Target: "Spotify"},
		{Action: command.ActionClose, Target: "Preview#2"},
	}
	for _, want := range cmds {
		inv, ok := cat.FromCanonical(want)
		require.True(t, ok, want.String())
		got, err := cat.Translate(inv)
		require.NoError(t, err, Describe(inv))
		require.Equal(t, want, got)
	}
}

func TestToCanonical_SoftFailures(t *testing.T) {
	cat := DefaultCatalog()
	str := command.StringValue
	cases := map[string]command.ToolInvocation{
		"unknown tool": {Name: "launch_app", Args: command.Args{{Key: "app", Value: str("Safari")}}},
		"missing app":  {Name: "focus_window"},
		"bad enum": {Name: "move_window", Args: command.Args{
			{Key: "app", Value: str("Safari")}, {Key: "position", Value: str("diagonal")},
		}},
		"out of range": {Name: "move_window", Args: command.Args{
			{Key: "app", Value: str("Safari")}, {Key: "x", Value: command.IntValue(0)}, {Key: "y", Value: command.IntValue(0)},
			{Key: "width", Value: command.FloatValue(150)}, {Key: "height", Value: command.IntValue(50)},
		}},
		"width without height": {Name: "resize_window", Args: command.Args{
			{Key: "app", Value: str("Safari")}, {Key: "width", Value: command.IntValue(30)},
		}},
		"no placement": {Name: "move_window", Args: command.Args{{Key: "app", Value: str("Safari")}}},
		"mixed placement": {Name: "move_window", Args: command.Args{
			{Key: "app", Value: str("Safari")}, {Key: "position", Value: str("left")}, {Key: "x", Value: command.IntValue(5)},
		}},
		"wrong type": {Name: "move_window", Args: command.Args{
			{Key: "app", Value: command.IntValue(7)}, {Key: "position", Value: str("left")},
		}},
	}
	for name, inv := range cases {
		_, ok := cat.ToCanonical(inv)
		require.False(t, ok, name)
	}
}

func TestToCanonical_LenientScalars(t *testing.T) {
	inv := command.ToolInvocation{Name: "position_window", Args: command.Args{
		{Key: "app", Value: command.StringValue("Notes")},
		{Key: "position", Value: command.StringValue("center")},
		{Key: "layer", Value: command.FloatValue(2)},
		{Key: "focus", Value: command.StringValue("true")},
		{Key: "reason", Value: command.StringValue("ignored")},
	}}
	cmd, ok := DefaultCatalog().ToCanonical(inv)
	require.True(t, ok)
	require.Equal(t, command.ActionCompositePosition, cmd.Action)
	require.Equal(t, command.PositionCenter, cmd.Position)
	require.Equal(t, 2, *cmd.Layer)
	require.True(t, *cmd.Focus)
}

func TestLoadCatalogNarrowsEnum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	data := `tools:
  - name: snap
    description: Snap a window to a half.
    action: move
    params:
      - name: app
        type: string
        required: true
      - name: position
        type: string
        enum: [left, right]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, cat, 1)

	_, ok := cat.ToCanonical(command.ToolInvocation{Name: "snap", Args: command.Args{
		{Key: "app", Value: command.StringValue("Safari")},
		{Key: "position", Value: command.StringValue("center")},
	}})
	require.False(t, ok)

	cmd, ok := cat.ToCanonical(command.ToolInvocation{Name: "snap", Args: command.Args{
		{Key: "app", Value: command.StringValue("Safari")},
		{Key: "position", Value: command.StringValue("right")},
	}})
	require.True(t, ok)
	require.Equal(t, command.PositionRight, cmd.Position)
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "tools:\n  - name: a\n    action: move\n    colour: red\n",
		"unknown action": "tools:\n  - name: a\n    action: teleport\n    params: [{name: app, type: string}]\n",
		"no app param":   "tools:\n  - name: a\n    action: focus\n    params: []\n",
		"bad enum value": "tools:\n  - name: a\n    action: move\n    params: [{name: app, type: string}, {name: position, type: string, enum: [upside]}]\n",
		"duplicate": "tools:\n  - {name: a, action: focus, params: [{name: app, type: string}]}\n" +
			"  - {name: a, action: close, params: [{name: app, type: string}]}\n",
		"empty": "tools: []\n",
	}
	for name, doc := range cases {
		_, err := ParseCatalog([]byte(doc))
		require.Error(t, err, name)
	}
}

func TestDescribe(t *testing.T) {
	inv := command.ToolInvocation{Name: "move_window", Args: command.Args{
		{Key: "app", Value: command.StringValue("Safari")},
		{Key: "x", Value: command.FloatValue(12.5)},
	}}
	require.Equal(t, `move_window(app="Safari", x=12.5)`, Describe(inv))
}
