//go:build linux

package platform

import (
	"context"
	"fmt"
	"strconv"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/winpilot/internal/tiling"
	"github.com/1broseidon/winpilot/internal/x11"
)

// X11Backend drives an EWMH window manager over an X11 connection.
type X11Backend struct {
	conn *x11.Connection
}

var _ Backend = (*X11Backend)(nil)

// NewX11Backend opens a connection to display ("" means $DISPLAY).
func NewX11Backend(display string) (*X11Backend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, err
	}
	return &X11Backend{conn: conn}, nil
}

// Disconnect closes the underlying X11 connection.
func (b *X11Backend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// Snapshot captures the usable area of every monitor and the normal
// windows on the current desktop. Stacking order becomes Layer and
// _NET_WM_STATE_HIDDEN becomes Minimized.
func (b *X11Backend) Snapshot(ctx context.Context) (Snapshot, error) {
	conn, err := b.connection()
	if err != nil {
		return Snapshot{}, err
	}
	monitors, err := conn.GetMonitors()
	if err != nil {
		return Snapshot{}, err
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	clients, err := conn.Clients()
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Displays: make([]tiling.Display, len(monitors))}
	for i, m := range monitors {
		snap.Displays[i] = tiling.Display{
			Index:  i,
			Name:   m.Name,
			Bounds: toRect(m.Usable),
		}
	}
	for layer, c := range clients {
		if c.Class == "" {
			continue
		}
		di := displayFor(monitors, c.Bounds)
		frame := toRect(c.Bounds)
		frame.X -= snap.Displays[di].Bounds.X
		frame.Y -= snap.Displays[di].Bounds.Y
		snap.Windows = append(snap.Windows, tiling.WindowState{
			AppID:        c.Class,
			WindowID:     strconv.FormatUint(uint64(c.ID), 10),
			Frame:        frame,
			Layer:        layer,
			DisplayIndex: di,
			Minimized:    c.Hidden,
		})
	}
	return snap, nil
}

func (b *X11Backend) MoveResize(windowID string, bounds tiling.Rect) error {
	return b.withWindow(windowID, func(conn *x11.Connection, win xproto.Window) error {
		x, y, w, h := bounds.Pixels()
		return conn.MoveResizeWindow(win, x, y, w, h)
	})
}

func (b *X11Backend) Minimize(windowID string) error {
	return b.withWindow(windowID, (*x11.Connection).MinimizeWindow)
}

func (b *X11Backend) Activate(windowID string) error {
	return b.withWindow(windowID, (*x11.Connection).ActivateWindow)
}

func (b *X11Backend) Raise(windowID string) error {
	return b.withWindow(windowID, (*x11.Connection).RaiseWindow)
}

func (b *X11Backend) Close(windowID string) error {
	return b.withWindow(windowID, (*x11.Connection).CloseWindow)
}

func (b *X11Backend) withWindow(windowID string, fn func(*x11.Connection, xproto.Window) error) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	id, err := strconv.ParseUint(windowID, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid window id %q: %w", windowID, err)
	}
	return fn(conn, xproto.Window(id))
}

func (b *X11Backend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

// displayFor returns the monitor holding the window's center, falling back
// to the first monitor.
func displayFor(monitors []x11.Monitor, r x11.Rect) int {
	cx, cy := r.X+r.Width/2, r.Y+r.Height/2
	for i, m := range monitors {
		b := m.Bounds
		if cx >= b.X && cx < b.X+b.Width && cy >= b.Y && cy < b.Y+b.Height {
			return i
		}
	}
	return 0
}

func toRect(r x11.Rect) tiling.Rect {
	return tiling.Rect{X: float64(r.X), Y: float64(r.Y), Width: float64(r.Width), Height: float64(r.Height)}
}
