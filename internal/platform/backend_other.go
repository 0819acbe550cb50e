//go:build !linux

package platform

import (
	"context"
	"errors"

	"github.com/1broseidon/winpilot/internal/tiling"
)

// ErrUnsupported is returned by the X11 backend on non-Linux systems.
var ErrUnsupported = errors.New("x11 backend is only available on linux")

type X11Backend struct{}

func NewX11Backend(string) (*X11Backend, error) { return nil, ErrUnsupported }

func (b *X11Backend) Disconnect() {}

func (b *X11Backend) Snapshot(context.Context) (Snapshot, error) { return Snapshot{}, ErrUnsupported }
func (b *X11Backend) MoveResize(string, tiling.Rect) error       { return ErrUnsupported }
func (b *X11Backend) Minimize(string) error                      { return ErrUnsupported }
func (b *X11Backend) Activate(string) error                      { return ErrUnsupported }
func (b *X11Backend) Raise(string) error                         { return ErrUnsupported }
func (b *X11Backend) Close(string) error                         { return ErrUnsupported }
