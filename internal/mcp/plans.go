package mcp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/winpilot/internal/command"
)

// DefaultMaxPlans bounds how many plans stay on disk.
const DefaultMaxPlans = 50

// ErrPlanNotFound is returned for unknown or malformed plan ids.
var ErrPlanNotFound = errors.New("plan not found")

// Plan is a stored arrange_windows result that can be applied later.
type Plan struct {
	ID          string            `yaml:"id"`
	Instruction string            `yaml:"instruction"`
	Passed      bool              `yaml:"passed"`
	Commands    []command.Command `yaml:"commands"`
	CreatedAt   time.Time         `yaml:"created_at"`
}

// PlanStore keeps plans as YAML files, one per id.
type PlanStore struct {
	dir string
	max int
	mu  sync.Mutex
}

// DefaultPlanDir returns $XDG_DATA_HOME/winpilot/plans, falling back to
// ~/.local/share/winpilot/plans.
func DefaultPlanDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "winpilot", "plans"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		home = strings.TrimSpace(os.Getenv("HOME"))
	}
	if home == "" {
		return "", fmt.Errorf("failed to resolve plan directory: home directory is not set")
	}
	return filepath.Join(home, ".local", "share", "winpilot", "plans"), nil
}

// NewPlanStore stores plans under dir, keeping at most max of them
// (max <= 0 uses DefaultMaxPlans).
func NewPlanStore(dir string, max int) *PlanStore {
	if max <= 0 {
		max = DefaultMaxPlans
	}
	return &PlanStore{dir: dir, max: max}
}

// NewPlan assigns a fresh id.
func NewPlan(instruction string, passed bool, cmds []command.Command) Plan {
	return Plan{
		ID:          uuid.NewString(),
		Instruction: instruction,
		Passed:      passed,
		Commands:    cmds,
		CreatedAt:   time.Now().UTC(),
	}
}

// Save writes p and prunes the oldest plans beyond the limit.
func (s *PlanStore) Save(p Plan) error {
	if _, err := uuid.Parse(p.ID); err != nil {
		return fmt.Errorf("invalid plan id %q: %w", p.ID, err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.path(p.ID), data, 0o644); err != nil {
		return err
	}
	return s.pruneLocked()
}

// Load reads the plan with the given id.
func (s *PlanStore) Load(id string) (Plan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(s.path(id))
}

// Remove deletes a plan. Removing a missing plan is not an error.
func (s *PlanStore) Remove(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrPlanNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns stored plans, newest first.
func (s *PlanStore) List() ([]Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *PlanStore) path(id string) string {
	return filepath.Join(s.dir, strings.ToLower(id)+".yaml")
}

func (s *PlanStore) readLocked(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, strings.TrimSuffix(filepath.Base(path), ".yaml"))
		}
		return Plan{}, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("%s: failed to parse yaml: %w", path, err)
	}
	return p, nil
}

func (s *PlanStore) listLocked() ([]Plan, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	plans := make([]Plan, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		p, err := s.readLocked(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		plans = append(plans, p)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})
	return plans, nil
}

func (s *PlanStore) pruneLocked() error {
	plans, err := s.listLocked()
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range plans[min(len(plans), s.max):] {
		if err := os.Remove(s.path(p.ID)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
