package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// Client is a managed top-level window.
type Client struct {
	ID     xproto.Window
	Class  string
	Title  string
	Bounds Rect
	Hidden bool
}

// Clients lists normal windows on the current desktop, bottom-most first.
func (c *Connection) Clients() ([]Client, error) {
	windows, err := ewmh.ClientListStackingGet(c.XUtil)
	if err != nil || len(windows) == 0 {
		windows, err = ewmh.ClientListGet(c.XUtil)
		if err != nil {
			return nil, fmt.Errorf("failed to get client list: %w", err)
		}
	}

	currentDesktop, desktopErr := ewmh.CurrentDesktopGet(c.XUtil)
	out := make([]Client, 0, len(windows))
	for _, win := range windows {
		if !c.IsNormalWindow(win) {
			continue
		}
		if desktopErr == nil {
			desktop, err := ewmh.WmDesktopGet(c.XUtil, win)
			// 0xFFFFFFFF means the window is on all desktops (sticky)
			if err == nil && desktop != uint(0xFFFFFFFF) && desktop != currentDesktop {
				continue
			}
		}
		bounds, ok := c.windowRect(win)
		if !ok {
			continue
		}
		out = append(out, Client{
			ID:     win,
			Class:  c.windowClass(win),
			Title:  c.windowTitle(win),
			Bounds: bounds,
			Hidden: c.hasState(win, "_NET_WM_STATE_HIDDEN"),
		})
	}
	return out, nil
}

// MoveResizeWindow moves and resizes a window to the specified geometry
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) error {
	// Maximized windows ignore geometry requests.
	c.unmaximizeWindow(windowID)

	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height); err != nil {
		xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
	}
	return nil
}

func (c *Connection) unmaximizeWindow(windowID xproto.Window) {
	if c.hasState(windowID, "_NET_WM_STATE_MAXIMIZED_HORZ") {
		ewmh.WmStateReq(c.XUtil, windowID, ewmh.StateRemove, "_NET_WM_STATE_MAXIMIZED_HORZ")
	}
	if c.hasState(windowID, "_NET_WM_STATE_MAXIMIZED_VERT") {
		ewmh.WmStateReq(c.XUtil, windowID, ewmh.StateRemove, "_NET_WM_STATE_MAXIMIZED_VERT")
	}
}

// ActivateWindow maps, raises and focuses a window using _NET_ACTIVE_WINDOW.
// The message is built by hand because the xgbutil ewmh request helpers
// panic on this library version.
func (c *Connection) ActivateWindow(windowID xproto.Window) error {
	const sourceIndication = 2 // pager/direct action
	return c.sendClientMessage(c.Root, windowID,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		"_NET_ACTIVE_WINDOW", sourceIndication)
}

// RaiseWindow puts a window on top of its siblings without focusing it.
func (c *Connection) RaiseWindow(windowID xproto.Window) error {
	return ewmh.RestackWindow(c.XUtil, windowID)
}

// MinimizeWindow iconifies a window via WM_CHANGE_STATE.
func (c *Connection) MinimizeWindow(windowID xproto.Window) error {
	const iconicState = 3
	return c.sendClientMessage(c.Root, windowID,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		"WM_CHANGE_STATE", iconicState)
}

// CloseWindow requests a graceful close via WM_DELETE_WINDOW.
func (c *Connection) CloseWindow(windowID xproto.Window) error {
	deleteAtom, err := c.internAtom("WM_DELETE_WINDOW")
	if err != nil {
		return err
	}
	return c.sendClientMessage(windowID, windowID, xproto.EventMaskNoEvent, "WM_PROTOCOLS", uint32(deleteAtom))
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		return true
	}
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP", "_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH", "_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}
	return len(types) == 0
}

func (c *Connection) hasWindowType(windowID xproto.Window, want string) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func (c *Connection) hasState(windowID xproto.Window, want string) bool {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, s := range states {
		if s == want {
			return true
		}
	}
	return false
}

func (c *Connection) windowRect(windowID xproto.Window) (Rect, bool) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Rect{}, false
	}
	translate, err := xproto.TranslateCoordinates(c.XUtil.Conn(), windowID, c.Root, 0, 0).Reply()
	if err != nil {
		return Rect{}, false
	}
	return Rect{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, true
}

func (c *Connection) windowClass(windowID xproto.Window) string {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

func (c *Connection) windowTitle(windowID xproto.Window) string {
	if title, err := ewmh.WmNameGet(c.XUtil, windowID); err == nil && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	if title, err := icccm.WmNameGet(c.XUtil, windowID); err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}
