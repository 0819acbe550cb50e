package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/winpilot/internal/command"
	"github.com/1broseidon/winpilot/internal/constraint"
	"github.com/1broseidon/winpilot/internal/pipeline"
	"github.com/1broseidon/winpilot/internal/platform"
	"github.com/1broseidon/winpilot/internal/tiling"
	"github.com/1broseidon/winpilot/internal/toolschema"
)

const (
	formatAuto  = "auto"
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("78")).Bold(true)
)

// printer renders results as tables on a terminal and as YAML or JSON
// documents otherwise.
type printer struct {
	w      io.Writer
	format string
	width  int
	tty    bool
	yamlw  *yaml.Encoder
}

func newPrinter(f *os.File, format string) *printer {
	tty := term.IsTerminal(int(f.Fd()))
	width := 0
	if tty {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}
	if format == "" || format == formatAuto {
		format = formatYAML
		if tty {
			format = formatTable
		}
	}
	return &printer{w: f, format: format, width: width, tty: tty}
}

// interactive reports whether the user can answer a prompt.
func (p *printer) interactive() bool {
	return p.tty && p.format == formatTable && term.IsTerminal(int(os.Stdin.Fd()))
}

type arrangementReport struct {
	Passed      bool                   `yaml:"passed" json:"passed"`
	Attempts    int                    `yaml:"attempts" json:"attempts"`
	Commands    []command.Command      `yaml:"commands" json:"commands"`
	Violations  []constraint.Violation `yaml:"violations,omitempty" json:"violations,omitempty"`
	Diagnostics []string               `yaml:"diagnostics,omitempty" json:"diagnostics,omitempty"`
	Truncated   bool                   `yaml:"truncated,omitempty" json:"truncated,omitempty"`
	Warning     string                 `yaml:"warning,omitempty" json:"warning,omitempty"`
}

type stepReport struct {
	Command string `yaml:"command" json:"command"`
	Window  string `yaml:"window,omitempty" json:"window,omitempty"`
	Skipped string `yaml:"skipped,omitempty" json:"skipped,omitempty"`
	Error   string `yaml:"error,omitempty" json:"error,omitempty"`
}

type checkReport struct {
	Valid      bool                   `yaml:"valid" json:"valid"`
	Violations []constraint.Violation `yaml:"violations,omitempty" json:"violations,omitempty"`
	Predicted  []tiling.WindowState   `yaml:"predicted" json:"predicted"`
}

func (p *printer) arrangement(res pipeline.Result) error {
	if p.format != formatTable {
		report := arrangementReport{
			Passed:      res.Passed,
			Attempts:    res.Attempts,
			Commands:    res.Commands,
			Violations:  res.Violations,
			Diagnostics: res.Diagnostics,
			Truncated:   res.Truncated,
		}
		if res.LastError != nil {
			report.Warning = res.LastError.Error()
		}
		return p.document(report)
	}

	status := passStyle.Render("passed")
	if !res.Passed {
		status = failStyle.Render("failed validation")
	}
	fmt.Fprintf(p.w, "%s after %d attempt(s)\n", status, res.Attempts)

	rows := make([][]string, 0, len(res.Commands))
	for i, c := range res.Commands {
		rows = append(rows, []string{strconv.Itoa(i + 1), string(c.Action), c.Target, placement(c)})
	}
	fmt.Fprintln(p.w, p.table([]string{"#", "ACTION", "TARGET", "PLACEMENT"}, rows))
	p.violations(res.Violations)
	if res.Truncated {
		fmt.Fprintln(p.w, "note: the model reply hit the output-token limit")
	}
	if res.LastError != nil {
		fmt.Fprintf(p.w, "note: last attempt failed: %v\n", res.LastError)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(p.w, "  %s\n", d)
	}
	return nil
}

func (p *printer) steps(steps []platform.Step) error {
	reports := make([]stepReport, 0, len(steps))
	for _, st := range steps {
		r := stepReport{Command: st.Command.String(), Window: st.Window, Skipped: st.Skipped}
		if st.Err != nil {
			r.Error = st.Err.Error()
		}
		reports = append(reports, r)
	}
	if p.format != formatTable {
		return p.document(map[string][]stepReport{"steps": reports})
	}

	rows := make([][]string, 0, len(reports))
	for i, r := range reports {
		result := "ok"
		switch {
		case r.Error != "":
			result = "error: " + r.Error
		case r.Skipped != "":
			result = "skipped: " + r.Skipped
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), r.Window, result})
	}
	fmt.Fprintln(p.w, p.table([]string{"#", "WINDOW", "RESULT"}, rows))
	return nil
}

// operations lists what a snapshot-backed run would have sent to the
// window system.
func (p *printer) operations(ops []platform.Op) error {
	lines := make([]string, len(ops))
	for i, op := range ops {
		lines[i] = op.String()
	}
	if p.format != formatTable {
		return p.document(map[string][]string{"operations": lines})
	}
	fmt.Fprintln(p.w, "operations (not performed):")
	for _, l := range lines {
		fmt.Fprintf(p.w, "  %s\n", l)
	}
	return nil
}

func (p *printer) check(predicted []tiling.WindowState, result constraint.ValidationResult) error {
	if p.format != formatTable {
		return p.document(checkReport{Valid: result.Valid, Violations: result.Violations, Predicted: predicted})
	}

	rows := make([][]string, 0, len(predicted))
	for _, w := range predicted {
		x, y, width, height := w.Frame.Pixels()
		state := ""
		if w.Minimized {
			state = "minimized"
		}
		rows = append(rows, []string{
			w.Key(),
			strconv.Itoa(w.DisplayIndex),
			fmt.Sprintf("%d,%d %dx%d", x, y, width, height),
			strconv.Itoa(w.Layer),
			state,
		})
	}
	fmt.Fprintln(p.w, p.table([]string{"WINDOW", "DISPLAY", "FRAME", "LAYER", "STATE"}, rows))
	if result.Valid {
		fmt.Fprintln(p.w, passStyle.Render("layout ok"))
		return nil
	}
	p.violations(result.Violations)
	return nil
}

func (p *printer) violations(vs []constraint.Violation) {
	if len(vs) == 0 {
		return
	}
	rows := make([][]string, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, []string{v.WindowKey, fmt.Sprintf("%.0f", v.ActualArea), fmt.Sprintf("%.0f", v.RequiredArea)})
	}
	fmt.Fprintln(p.w, failStyle.Render("violations:"))
	fmt.Fprintln(p.w, p.table([]string{"WINDOW", "VISIBLE PX²", "REQUIRED PX²"}, rows))
}

func (p *printer) table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	if p.width > 0 {
		t = t.Width(p.width)
	}
	return t.String()
}

func (p *printer) document(v any) error {
	switch p.format {
	case formatYAML:
		if p.yamlw == nil {
			p.yamlw = yaml.NewEncoder(p.w)
			p.yamlw.SetIndent(2)
		}
		return p.yamlw.Encode(v)
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", p.format)
	}
}

// placement summarises everything but the action and target.
func placement(c command.Command) string {
	var parts []string
	if c.Position != "" {
		parts = append(parts, string(c.Position))
	}
	if c.Size != "" {
		parts = append(parts, string(c.Size))
	}
	if pt := c.CustomPosition; pt != nil {
		parts = append(parts, fmt.Sprintf("at %g%%,%g%%", pt.X, pt.Y))
	}
	if e := c.CustomSize; e != nil {
		parts = append(parts, fmt.Sprintf("%g%%x%g%%", e.Width, e.Height))
	}
	if c.Display != nil {
		parts = append(parts, fmt.Sprintf("display %d", *c.Display))
	}
	if c.Layer != nil {
		parts = append(parts, fmt.Sprintf("layer %d", *c.Layer))
	}
	if c.Focus != nil && *c.Focus {
		parts = append(parts, "focus")
	}
	return strings.Join(parts, ", ")
}

type catalogEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Action      command.Action  `json:"action"`
	Parameters  json.RawMessage `json:"parameters"`
}

// writeCatalog prints the tool declarations with their JSON schemas.
func writeCatalog(w io.Writer, catalog toolschema.Catalog) error {
	entries := make([]catalogEntry, 0, len(catalog))
	for _, spec := range catalog {
		raw, err := spec.RawSchema()
		if err != nil {
			return fmt.Errorf("%s: %w", spec.Name, err)
		}
		entries = append(entries, catalogEntry{
			Name:        spec.Name,
			Description: spec.Description,
			Action:      spec.Action,
			Parameters:  raw,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// confirmApply asks before commands are sent to real windows.
func confirmApply(count int, passed bool) (bool, error) {
	title := fmt.Sprintf("Apply %d command(s)?", count)
	if !passed {
		title = fmt.Sprintf("The layout failed validation. Apply %d command(s) anyway?", count)
	}
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Apply").
		Negative("Cancel").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}
