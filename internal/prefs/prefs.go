// Package prefs parses standing layout preferences such as "always put
// Slack on the right" into a closed set of statement kinds.
//
// Recognised templates (case-insensitive, punctuation ignored):
//
//	always (put|place|move|keep) <app> [on|at|to|in] [the] <position> [side|corner]
//	[i] prefer <app> [on|at|to|in] [the] <position> [side|corner]
//	never use <app|position|size>
//	always (make|size|resize) <app> [to] [a|an] <size> [size|wide|width]
package prefs

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/1broseidon/winpilot/internal/command"
)

// ErrUnrecognized is returned for statements that match no template.
var ErrUnrecognized = errors.New("unrecognized preference")

// Kind names a preference template.
type Kind string

const (
	KindAlwaysPosition Kind = "always-position"
	KindPreferPosition Kind = "prefer-position"
	KindNeverUse       Kind = "never-use"
	KindAlwaysSize     Kind = "always-size"
)

// Preference is one parsed statement. The variants are AlwaysPosition,
// PreferPosition, NeverUse and AlwaysSize.
type Preference interface {
	Kind() Kind
	// Render states the preference as an instruction to the model.
	Render() string
	preference()
}

type AlwaysPosition struct {
	App      string
	Position command.Position
}

type PreferPosition struct {
	App      string
	Position command.Position
}

// NeverUse bans an application or a placement. Exactly one field is set.
type NeverUse struct {
	App      string
	Position command.Position
	Size     command.Size
}

type AlwaysSize struct {
	App  string
	Size command.Size
}

func (AlwaysPosition) Kind() Kind { return KindAlwaysPosition }
func (PreferPosition) Kind() Kind { return KindPreferPosition }
func (NeverUse) Kind() Kind       { return KindNeverUse }
func (AlwaysSize) Kind() Kind     { return KindAlwaysSize }

func (AlwaysPosition) preference() {}
func (PreferPosition) preference() {}
func (NeverUse) preference()       {}
func (AlwaysSize) preference()     {}

func (p AlwaysPosition) Render() string {
	return fmt.Sprintf("Always place %s at the %s of its display.", p.App, p.Position)
}

func (p PreferPosition) Render() string {
	return fmt.Sprintf("When nothing else is asked, place %s at the %s of its display.", p.App, p.Position)
}

func (p NeverUse) Render() string {
	switch {
	case p.Position != "":
		return fmt.Sprintf("Never use the %s position.", p.Position)
	case p.Size != "":
		return fmt.Sprintf("Never use the %s size.", p.Size)
	default:
		return fmt.Sprintf("Never move or focus %s unless the user names it.", p.App)
	}
}

func (p AlwaysSize) Render() string {
	return fmt.Sprintf("Always size %s to %s of its display.", p.App, p.Size)
}

var (
	placeVerbs = wordSet("put", "place", "move", "keep")
	sizeVerbs  = wordSet("make", "size", "resize")
	connectors = wordSet("on", "at", "to", "in", "the", "a", "an")
	trailers   = wordSet("side", "corner", "half", "size", "wide", "width", "of", "screen")
)

// Parse matches one statement against the templates.
func Parse(statement string) (Preference, error) {
	words := tokenize(statement)
	lower := lowerAll(words)
	if len(words) >= 2 && lower[0] == "i" && lower[1] == "prefer" {
		words, lower = words[1:], lower[1:]
	}
	if len(words) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognized, statement)
	}

	switch {
	case lower[0] == "always" && placeVerbs[lower[1]]:
		app, pos, ok := splitPosition(words[2:], lower[2:])
		if ok {
			return AlwaysPosition{App: app, Position: pos}, nil
		}
	case lower[0] == "always" && sizeVerbs[lower[1]]:
		app, size, ok := splitSize(words[2:], lower[2:])
		if ok {
			return AlwaysSize{App: app, Size: size}, nil
		}
	case lower[0] == "prefer":
		app, pos, ok := splitPosition(words[1:], lower[1:])
		if ok {
			return PreferPosition{App: app, Position: pos}, nil
		}
	case lower[0] == "never" && lower[1] == "use" && len(words) > 2:
		if pos, ok := matchPhrase(lower[2:], matchPosition); ok {
			return NeverUse{Position: pos}, nil
		}
		if size, ok := matchPhrase(lower[2:], matchSize); ok {
			return NeverUse{Size: size}, nil
		}
		if app := strings.Join(words[2:], " "); app != "" {
			return NeverUse{App: app}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnrecognized, statement)
}

// ParseAll parses every statement, keeping the ones that match. The error
// joins one entry per rejected statement.
func ParseAll(statements []string) ([]Preference, error) {
	var (
		out  []Preference
		errs []error
	)
	for _, s := range statements {
		p, err := Parse(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}

// Render formats preferences as a prompt section. Empty input renders
// nothing.
func Render(prefs []Preference) string {
	if len(prefs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("User preferences:")
	for _, p := range prefs {
		sb.WriteString("\n- ")
		sb.WriteString(p.Render())
	}
	return sb.String()
}

// splitPosition finds the longest trailing phrase naming a position and
// returns the words before it as the application.
func splitPosition(words, lower []string) (string, command.Position, bool) {
	for cut := 1; cut < len(words); cut++ {
		pos, ok := matchPhrase(lower[cut:], matchPosition)
		if !ok {
			continue
		}
		if app := appName(words[:cut], lower[:cut]); app != "" {
			return app, pos, true
		}
	}
	return "", "", false
}

func splitSize(words, lower []string) (string, command.Size, bool) {
	for cut := 1; cut < len(words); cut++ {
		size, ok := matchPhrase(lower[cut:], matchSize)
		if !ok {
			continue
		}
		if app := appName(words[:cut], lower[:cut]); app != "" {
			return app, size, true
		}
	}
	return "", "", false
}

// appName drops trailing connectors ("on the") from the application words.
func appName(words, lower []string) string {
	end := len(words)
	for end > 0 && connectors[lower[end-1]] {
		end--
	}
	return strings.Join(words[:end], " ")
}

// matchPhrase skips leading connectors, then retries match while dropping
// trailing filler words one at a time ("left side of the screen" -> "left").
func matchPhrase[T any](lower []string, match func([]string) (T, bool)) (T, bool) {
	start := 0
	for start < len(lower) && connectors[lower[start]] {
		start++
	}
	phrase := lower[start:]
	for len(phrase) > 0 {
		if v, ok := match(phrase); ok {
			return v, true
		}
		last := phrase[len(phrase)-1]
		if !trailers[last] && !connectors[last] {
			break
		}
		phrase = phrase[:len(phrase)-1]
	}
	var zero T
	return zero, false
}

func matchPosition(phrase []string) (command.Position, bool) {
	switch strings.Join(phrase, " ") {
	case "left":
		return command.PositionLeft, true
	case "right":
		return command.PositionRight, true
	case "top", "upper":
		return command.PositionTop, true
	case "bottom", "lower":
		return command.PositionBottom, true
	case "center", "centre", "middle":
		return command.PositionCenter, true
	case "top left", "upper left":
		return command.PositionTopLeft, true
	case "top right", "upper right":
		return command.PositionTopRight, true
	case "bottom left", "lower left":
		return command.PositionBottomLeft, true
	case "bottom right", "lower right":
		return command.PositionBottomRight, true
	case "full", "fullscreen", "full screen", "whole", "whole screen":
		return command.PositionFull, true
	}
	return "", false
}

func matchSize(phrase []string) (command.Size, bool) {
	switch strings.Join(phrase, " ") {
	case "full", "fullscreen", "full screen":
		return command.SizeFull, true
	case "half", "one half":
		return command.SizeHalf, true
	case "third", "one third":
		return command.SizeThird, true
	case "two thirds":
		return command.SizeTwoThirds, true
	case "quarter", "one quarter":
		return command.SizeQuarter, true
	}
	return "", false
}

// tokenize splits on spaces and hyphens and drops punctuation other than
// characters that commonly appear in application names.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
		switch r {
		case '.', '_', '#', '+':
			return false
		}
		return true
	})
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(strings.TrimRight(w, "."))
	}
	return out
}

func wordSet(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}
