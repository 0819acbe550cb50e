// Package toolschema declares the window tools offered to a model and
// translates the model's calls back into canonical commands.
package toolschema

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/winpilot/internal/command"
)

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeString  ParamType = "string"
	TypeBoolean ParamType = "boolean"
)

func (t ParamType) valid() bool {
	switch t {
	case TypeInteger, TypeNumber, TypeString, TypeBoolean:
		return true
	}
	return false
}

// Param describes one tool argument.
type Param struct {
	Name        string    `yaml:"name"`
	Type        ParamType `yaml:"type"`
	Description string    `yaml:"description,omitempty"`
	Enum        []string  `yaml:"enum,omitempty"`
	Required    bool      `yaml:"required,omitempty"`
	Minimum     *float64  `yaml:"minimum,omitempty"`
	Maximum     *float64  `yaml:"maximum,omitempty"`
}

// Spec is one tool declaration.
type Spec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Action      command.Action `yaml:"action"`
	Params      []Param        `yaml:"params"`
}

// Param returns the parameter with the given name.
func (s Spec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Required lists required parameter names in declaration order.
func (s Spec) Required() []string {
	var names []string
	for _, p := range s.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Catalog is the ordered set of tools offered to a model. It is read-only
// after construction and safe to share.
type Catalog []Spec

// Lookup returns the spec with the given tool name.
func (c Catalog) Lookup(name string) (Spec, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// ForAction returns the first spec that produces action.
func (c Catalog) ForAction(action command.Action) (Spec, bool) {
	for _, s := range c {
		if s.Action == action {
			return s, true
		}
	}
	return Spec{}, false
}

// Names returns tool names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}

// Argument names shared by every tool.
const (
	ArgApp      = "app"
	ArgWindowID = "window_id"
	ArgPosition = "position"
	ArgSize     = "size"
	ArgX        = "x"
	ArgY        = "y"
	ArgWidth    = "width"
	ArgHeight   = "height"
	ArgLayer    = "layer"
	ArgDisplay  = "display"
	ArgFocus    = "focus"
)

func ptr(v float64) *float64 { return &v }

func positionEnum() []string {
	out := make([]string, 0, len(command.Positions()))
	for _, p := range command.Positions() {
		out = append(out, string(p))
	}
	return out
}

func sizeEnum() []string {
	out := make([]string, 0, len(command.Sizes()))
	for _, s := range command.Sizes() {
		out = append(out, string(s))
	}
	return out
}

func targetParams() []Param {
	return []Param{
		{Name: ArgApp, Type: TypeString, Required: true, Description: "Application identifier exactly as listed in the window inventory"},
		{Name: ArgWindowID, Type: TypeString, Description: "Window identifier, when the application has more than one window"},
	}
}

func placementParams() []Param {
	params := targetParams()
	return append(params,
		Param{Name: ArgPosition, Type: TypeString, Enum: positionEnum(), Description: "Symbolic anchor on the display"},
		Param{Name: ArgSize, Type: TypeString, Enum: sizeEnum(), Description: "Symbolic fraction of the display"},
		Param{Name: ArgX, Type: TypeNumber, Minimum: ptr(0), Maximum: ptr(100), Description: "Left edge in percent of display width; use instead of position"},
		Param{Name: ArgY, Type: TypeNumber, Minimum: ptr(0), Maximum: ptr(100), Description: "Top edge in percent of display height; use instead of position"},
		Param{Name: ArgWidth, Type: TypeNumber, Minimum: ptr(0), Maximum: ptr(100), Description: "Width in percent of display width; use instead of size"},
		Param{Name: ArgHeight, Type: TypeNumber, Minimum: ptr(0), Maximum: ptr(100), Description: "Height in percent of display height; use instead of size"},
		Param{Name: ArgLayer, Type: TypeInteger, Description: "Stacking priority, higher is in front"},
		Param{Name: ArgDisplay, Type: TypeInteger, Minimum: ptr(0), Description: "Display index to move the window to"},
		Param{Name: ArgFocus, Type: TypeBoolean, Description: "Focus the window after placing it"},
	)
}

// DefaultCatalog returns the built-in tool set.
func DefaultCatalog() Catalog {
	resize := targetParams()
	resize = append(resize,
		Param{Name: ArgSize, Type: TypeString, Enum: sizeEnum(), Description: "Symbolic fraction of the display width"},
		Param{Name: ArgWidth, Type: TypeNumber, Minimum: ptr(0), Maximum: ptr(100), Description: "Width in percent of display width"},
		Param{Name: ArgHeight, Type: TypeNumber, Minimum: ptr(0), Maximum: ptr(100), Description: "Height in percent of display height"},
		Param{Name: ArgLayer, Type: TypeInteger, Description: "Stacking priority, higher is in front"},
	)

	return Catalog{
		{Name: "move_window", Action: command.ActionMove, Params: placementParams(),
			Description: "Move a window to a symbolic position and size, or to a custom rectangle in percent of the display."},
		{Name: "resize_window", Action: command.ActionResize, Params: resize,
			Description: "Resize a window in place, keeping its top-left corner."},
		{Name: "position_window", Action: command.ActionCompositePosition, Params: placementParams(),
			Description: "Place a window and set its stacking layer in a single step."},
		{Name: "focus_window", Action: command.ActionFocus, Params: targetParams(),
			Description: "Bring a window to the foreground and give it input focus."},
		{Name: "minimize_window", Action: command.ActionMinimize, Params: targetParams(),
			Description: "Minimize a window."},
		{Name: "restore_window", Action: command.ActionRestore, Params: targetParams(),
			Description: "Restore a minimized window."},
		{Name: "close_window", Action: command.ActionClose, Params: targetParams(),
			Description: "Close a window."},
	}
}

// Validate checks that tool names are unique and every parameter is
// well-formed.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return errors.New("catalog declares no tools")
	}
	seen := make(map[string]struct{}, len(c))
	for _, s := range c {
		if strings.TrimSpace(s.Name) == "" {
			return errors.New("tool name is required")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate tool %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if _, ok := builders[s.Action]; !ok {
			return fmt.Errorf("tool %q: unknown action %q", s.Name, s.Action)
		}
		if _, ok := s.Param(ArgApp); !ok {
			return fmt.Errorf("tool %q: missing %q parameter", s.Name, ArgApp)
		}
		for _, p := range s.Params {
			if !p.Type.valid() {
				return fmt.Errorf("tool %q: param %q: unknown type %q", s.Name, p.Name, p.Type)
			}
			if len(p.Enum) > 0 && p.Type != TypeString {
				return fmt.Errorf("tool %q: param %q: enum requires a string type", s.Name, p.Name)
			}
			if err := checkEnum(p); err != nil {
				return fmt.Errorf("tool %q: %w", s.Name, err)
			}
		}
	}
	return nil
}

func checkEnum(p Param) error {
	for _, v := range p.Enum {
		switch p.Name {
		case ArgPosition:
			if !command.Position(v).Valid() {
				return fmt.Errorf("param %q: unknown position %q", p.Name, v)
			}
		case ArgSize:
			if !command.Size(v).Valid() {
				return fmt.Errorf("param %q: unknown size %q", p.Name, v)
			}
		}
	}
	return nil
}

type catalogFile struct {
	Tools Catalog `yaml:"tools"`
}

// LoadCatalog reads a tool catalog from a YAML file of the form
// "tools: [...]". Unknown keys are rejected.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode tool catalog: %w", err)
	}
	if err := file.Tools.Validate(); err != nil {
		return nil, err
	}
	return file.Tools, nil
}
