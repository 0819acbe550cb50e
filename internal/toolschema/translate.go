package toolschema

import (
	"fmt"
	"strings"

	"github.com/1broseidon/winpilot/internal/command"
)

type builder func(spec Spec, args command.Args) (command.Command, error)

var builders = map[command.Action]builder{
	command.ActionMove:              buildPlacement,
	command.ActionCompositePosition: buildPlacement,
	command.ActionResize:            buildResize,
	command.ActionFocus:             buildTargetOnly,
	command.ActionMinimize:          buildTargetOnly,
	command.ActionRestore:           buildTargetOnly,
	command.ActionClose:             buildTargetOnly,
}

// ToCanonical maps a tool call onto a command. It reports false when the
// tool is unknown, a required argument is missing, an argument has the
// wrong type or falls outside its declared range, or the resulting command
// is structurally invalid. Such calls are skipped, not fatal.
func (c Catalog) ToCanonical(inv command.ToolInvocation) (command.Command, bool) {
	cmd, err := c.Translate(inv)
	return cmd, err == nil
}

// Translate is ToCanonical with the reason for a rejection.
func (c Catalog) Translate(inv command.ToolInvocation) (command.Command, error) {
	spec, ok := c.Lookup(inv.Name)
	if !ok {
		return command.Command{}, fmt.Errorf("unknown tool %q", inv.Name)
	}
	build, ok := builders[spec.Action]
	if !ok {
		return command.Command{}, fmt.Errorf("tool %q: unknown action %q", spec.Name, spec.Action)
	}
	for _, name := range spec.Required() {
		if !inv.Args.Has(name) {
			return command.Command{}, fmt.Errorf("%s: missing required argument %q", spec.Name, name)
		}
	}
	if err := checkArgs(spec, inv.Args); err != nil {
		return command.Command{}, fmt.Errorf("%s: %w", spec.Name, err)
	}
	cmd, err := build(spec, inv.Args)
	if err != nil {
		return command.Command{}, fmt.Errorf("%s: %w", spec.Name, err)
	}
	if err := cmd.Validate(); err != nil {
		return command.Command{}, err
	}
	return cmd, nil
}

// checkArgs applies the declared type, enum and range of every known
// parameter. Undeclared arguments are ignored.
func checkArgs(spec Spec, args command.Args) error {
	for _, key := range args.Keys() {
		p, ok := spec.Param(key)
		if !ok {
			continue
		}
		v, _ := args.Get(key)
		switch p.Type {
		case TypeString:
			s, ok := v.Str()
			if !ok {
				return fmt.Errorf("argument %q: expected string, got %s", key, v.Kind())
			}
			if len(p.Enum) > 0 && !contains(p.Enum, s) {
				return fmt.Errorf("argument %q: %q is not one of %v", key, s, p.Enum)
			}
		case TypeInteger:
			n, ok := v.Int()
			if !ok {
				return fmt.Errorf("argument %q: expected integer, got %s", key, v.Kind())
			}
			if err := checkRange(p, float64(n)); err != nil {
				return err
			}
		case TypeNumber:
			f, ok := v.Float()
			if !ok {
				return fmt.Errorf("argument %q: expected number, got %s", key, v.Kind())
			}
			if err := checkRange(p, f); err != nil {
				return err
			}
		case TypeBoolean:
			if _, ok := v.Bool(); !ok {
				return fmt.Errorf("argument %q: expected boolean, got %s", key, v.Kind())
			}
		default:
			return fmt.Errorf("argument %q: unsupported parameter type %q", key, p.Type)
		}
	}
	return nil
}

func checkRange(p Param, v float64) error {
	if p.Minimum != nil && v < *p.Minimum {
		return fmt.Errorf("argument %q: %g is below %g", p.Name, v, *p.Minimum)
	}
	if p.Maximum != nil && v > *p.Maximum {
		return fmt.Errorf("argument %q: %g is above %g", p.Name, v, *p.Maximum)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func target(args command.Args) string {
	app := stringArg(args, ArgApp)
	if id := stringArg(args, ArgWindowID); id != "" {
		return app + "#" + id
	}
	return app
}

func stringArg(args command.Args, key string) string {
	v, ok := args.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.Str()
	return s
}

func floatArg(args command.Args, key string) (float64, bool) {
	v, ok := args.Get(key)
	if !ok {
		return 0, false
	}
	return v.Float()
}

func intArg(args command.Args, key string) (*int, bool) {
	v, ok := args.Get(key)
	if !ok {
		return nil, false
	}
	n, ok := v.Int()
	if !ok {
		return nil, false
	}
	out := int(n)
	return &out, true
}

func boolArg(args command.Args, key string) (*bool, bool) {
	v, ok := args.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.Bool()
	if !ok {
		return nil, false
	}
	return &b, true
}

func buildTargetOnly(spec Spec, args command.Args) (command.Command, error) {
	return command.Command{Action: spec.Action, Target: target(args)}, nil
}

func buildPlacement(spec Spec, args command.Args) (command.Command, error) {
	cmd := command.Command{
		Action:   spec.Action,
		Target:   target(args),
		Position: command.Position(stringArg(args, ArgPosition)),
		Size:     command.Size(stringArg(args, ArgSize)),
	}

	x, hasX := floatArg(args, ArgX)
	y, hasY := floatArg(args, ArgY)
	if hasX || hasY {
		cmd.CustomPosition = &command.Point{X: x, Y: y}
	}
	ext, err := extentArg(args)
	if err != nil {
		return command.Command{}, err
	}
	cmd.CustomSize = ext

	cmd.Layer, _ = intArg(args, ArgLayer)
	cmd.Display, _ = intArg(args, ArgDisplay)
	cmd.Focus, _ = boolArg(args, ArgFocus)
	return cmd, nil
}

func buildResize(spec Spec, args command.Args) (command.Command, error) {
	cmd := command.Command{
		Action: spec.Action,
		Target: target(args),
		Size:   command.Size(stringArg(args, ArgSize)),
	}
	ext, err := extentArg(args)
	if err != nil {
		return command.Command{}, err
	}
	cmd.CustomSize = ext
	cmd.Layer, _ = intArg(args, ArgLayer)
	return cmd, nil
}

// extentArg requires width and height together.
func extentArg(args command.Args) (*command.Extent, error) {
	w, hasW := floatArg(args, ArgWidth)
	h, hasH := floatArg(args, ArgHeight)
	switch {
	case hasW && hasH:
		return &command.Extent{Width: w, Height: h}, nil
	case hasW || hasH:
		return nil, fmt.Errorf("%s and %s must be given together", ArgWidth, ArgHeight)
	default:
		return nil, nil
	}
}

// FromCanonical renders cmd as a call to the first tool in the catalog
// that produces its action. It reports false when no tool does.
func (c Catalog) FromCanonical(cmd command.Command) (command.ToolInvocation, bool) {
	spec, ok := c.ForAction(cmd.Action)
	if !ok {
		return command.ToolInvocation{}, false
	}
	app, windowID := command.SplitTarget(cmd.Target)
	args := command.Args{{Key: ArgApp, Value: command.StringValue(app)}}
	add := func(key string, v command.Value) {
		if _, declared := spec.Param(key); declared {
			args = append(args, command.Arg{Key: key, Value: v})
		}
	}
	if windowID != "" {
		add(ArgWindowID, command.StringValue(windowID))
	}
	if cmd.Position != "" {
		add(ArgPosition, command.StringValue(string(cmd.Position)))
	}
	if cmd.Size != "" {
		add(ArgSize, command.StringValue(string(cmd.Size)))
	}
	if p := cmd.CustomPosition; p != nil {
		add(ArgX, command.FloatValue(p.X))
		add(ArgY, command.FloatValue(p.Y))
	}
	if e := cmd.CustomSize; e != nil {
		add(ArgWidth, command.FloatValue(e.Width))
		add(ArgHeight, command.FloatValue(e.Height))
	}
	if cmd.Layer != nil {
		add(ArgLayer, command.IntValue(int64(*cmd.Layer)))
	}
	if cmd.Display != nil {
		add(ArgDisplay, command.IntValue(int64(*cmd.Display)))
	}
	if cmd.Focus != nil {
		add(ArgFocus, command.BoolValue(*cmd.Focus))
	}
	return command.ToolInvocation{Name: spec.Name, Args: args}, true
}

// Describe renders an invocation as name(key=value, ...) for prompts and
// logs.
func Describe(inv command.ToolInvocation) string {
	var sb strings.Builder
	sb.WriteString(inv.Name)
	sb.WriteByte('(')
	for i, key := range inv.Args.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := inv.Args.Get(key)
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(v.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
