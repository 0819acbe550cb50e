// Package platform connects the arrangement pipeline to a real window
// system: it captures the current layout and carries out command lists.
package platform

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/winpilot/internal/tiling"
)

// Snapshot is the state of every display and window at one moment.
type Snapshot struct {
	Displays []tiling.Display     `yaml:"displays" json:"displays"`
	Windows  []tiling.WindowState `yaml:"windows" json:"windows"`
}

// Validate checks that every window refers to a known display.
func (s Snapshot) Validate() error {
	if len(s.Displays) == 0 {
		return errors.New("snapshot has no displays")
	}
	seen := make(map[int]bool, len(s.Displays))
	for _, d := range s.Displays {
		if seen[d.Index] {
			return fmt.Errorf("duplicate display index %d", d.Index)
		}
		if d.Bounds.Empty() {
			return fmt.Errorf("display %d has empty bounds", d.Index)
		}
		seen[d.Index] = true
	}
	for i, w := range s.Windows {
		if w.AppID == "" {
			return fmt.Errorf("window %d has no app_id", i)
		}
		if !seen[w.DisplayIndex] {
			return fmt.Errorf("window %s is on unknown display %d", w.Key(), w.DisplayIndex)
		}
	}
	return nil
}

// Driver performs single window operations. Bounds are global
// window-system coordinates.
type Driver interface {
	MoveResize(windowID string, bounds tiling.Rect) error
	Minimize(windowID string) error
	// Activate restores, raises and focuses a window.
	Activate(windowID string) error
	Raise(windowID string) error
	Close(windowID string) error
}

// Backend captures snapshots and drives windows.
type Backend interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	Driver
}

// LoadSnapshot reads a YAML snapshot file.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: failed to read: %w", path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%s: failed to parse yaml: %w", path, err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

// SaveSnapshot writes snap as YAML.
func SaveSnapshot(path string, snap Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: failed to write: %w", path, err)
	}
	return nil
}
