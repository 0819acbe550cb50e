package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/1broseidon/winpilot/internal/tiling"
)

// Op is one recorded window operation.
type Op struct {
	Kind     string
	WindowID string
	Bounds   tiling.Rect
}

func (o Op) String() string {
	if o.Kind != "move-resize" {
		return o.Kind + " " + o.WindowID
	}
	x, y, w, h := o.Bounds.Pixels()
	return fmt.Sprintf("%s %s %d,%d %dx%d", o.Kind, o.WindowID, x, y, w, h)
}

// Recorder is a Driver that records operations instead of performing them.
type Recorder struct {
	mu  sync.Mutex
	ops []Op
}

func (r *Recorder) record(op Op) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	return nil
}

// Ops returns the recorded operations in order.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

func (r *Recorder) MoveResize(id string, bounds tiling.Rect) error {
	return r.record(Op{Kind: "move-resize", WindowID: id, Bounds: bounds})
}
func (r *Recorder) Minimize(id string) error { return r.record(Op{Kind: "minimize", WindowID: id}) }
func (r *Recorder) Activate(id string) error { return r.record(Op{Kind: "activate", WindowID: id}) }
func (r *Recorder) Raise(id string) error    { return r.record(Op{Kind: "raise", WindowID: id}) }
func (r *Recorder) Close(id string) error    { return r.record(Op{Kind: "close", WindowID: id}) }

// FileBackend reads its snapshot from a YAML file and records operations.
type FileBackend struct {
	Path string
	Recorder
}

var _ Backend = (*FileBackend)(nil)

func (b *FileBackend) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return LoadSnapshot(b.Path)
}
