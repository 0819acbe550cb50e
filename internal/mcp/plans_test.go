package mcp

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/winpilot/internal/command"
)

func TestPlanStorePrunesOldest(t *testing.T) {
	store := NewPlanStore(t.TempDir(), 2)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		p := NewPlan("tidy", true, []command.Command{{Action: command.ActionMinimize, Target: "Mail"}})
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Save(p); err != nil {
			t.Fatalf("save: %v", err)
		}
		ids = append(ids, p.ID)
	}

	plans, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(plans) != 2 || plans[0].ID != ids[2] || plans[1].ID != ids[1] {
		t.Fatalf("unexpected plans after prune: %+v", plans)
	}
	if _, err := store.Load(ids[0]); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected oldest plan pruned, got %v", err)
	}
	got, err := store.Load(ids[2])
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Commands) != 1 || got.Commands[0].Target != "Mail" {
		t.Fatalf("unexpected commands %+v", got.Commands)
	}
}

func TestPlanStoreRemove(t *testing.T) {
	store := NewPlanStore(t.TempDir(), 0)
	p := NewPlan("tidy", false, nil)
	if err := store.Save(p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Remove(p.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(p.ID); err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}
	if _, err := store.Load(p.ID); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestPlanStoreRejectsBadIDs(t *testing.T) {
	store := NewPlanStore(t.TempDir(), 0)
	if err := store.Save(Plan{ID: "not-a-uuid"}); err == nil {
		t.Fatalf("expected save to reject id")
	}
	if _, err := store.Load("../secrets"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestPlanStoreListMissingDir(t *testing.T) {
	store := NewPlanStore(filepath.Join(t.TempDir(), "missing"), 0)
	plans, err := store.List()
	if err != nil || len(plans) != 0 {
		t.Fatalf("expected empty list, got %v %v", plans, err)
	}
}

func TestDefaultPlanDirUsesXDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	dir, err := DefaultPlanDir()
	if err != nil {
		t.Fatalf("DefaultPlanDir: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg-data", "winpilot", "plans") {
		t.Fatalf("unexpected dir %q", dir)
	}
}
