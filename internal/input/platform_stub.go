package input

import (
	"errors"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// ErrNotSupported is returned by stubBackend for every operation. Real
// per-OS input injection (Windows SendInput, X11/uinput, Core Graphics
// events) is out of scope.
var ErrNotSupported = errors.New("input: not supported on this platform")

type stubBackend struct{}

// NewStubBackend returns an InputBackend that rejects every call with
// ErrNotSupported, mirroring internal/capture's platform stub.
func NewStubBackend() InputBackend { return &stubBackend{} }

func (s *stubBackend) MouseMoveAbs(x, y int32) error   { return ErrNotSupported }
func (s *stubBackend) MouseMoveRel(dx, dy int32) error { return ErrNotSupported }
func (s *stubBackend) MouseButton(down bool, button wireproto.MouseButton) error {
	return ErrNotSupported
}
func (s *stubBackend) Scroll(dx, dy int32) error                    { return ErrNotSupported }
func (s *stubBackend) Key(down bool, code uint32) error             { return ErrNotSupported }
func (s *stubBackend) InputText(text string) error                  { return ErrNotSupported }
func (s *stubBackend) CursorPosition() (x, y int32, err error)      { return 0, 0, ErrNotSupported }
func (s *stubBackend) ScreenSize() (width, height int32, err error) { return 0, 0, ErrNotSupported }
