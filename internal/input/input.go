// Package input implements the input injector: validated translation
// from wire commands to OS pointer/keyboard events, with a shortcut
// block-list policy gate.
package input

import (
	"errors"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// ErrInvalidInput is returned for unmapped key/button codes and for
// commands rejected by the shortcut policy gate.
var ErrInvalidInput = errors.New("input: invalid input")

// ErrSystemError wraps an OS-level rejection from the InputBackend.
type ErrSystemError struct{ Cause error }

func (e *ErrSystemError) Error() string { return "input: system error: " + e.Cause.Error() }
func (e *ErrSystemError) Unwrap() error { return e.Cause }

// InputBackend is the collaborator this package depends on but does
// not implement: the platform-specific pointer/keyboard injection API.
type InputBackend interface {
	MouseMoveAbs(x, y int32) error
	MouseMoveRel(dx, dy int32) error
	MouseButton(down bool, button wireproto.MouseButton) error
	Scroll(dx, dy int32) error
	Key(down bool, code uint32) error
	InputText(text string) error
	CursorPosition() (x, y int32, err error)
	ScreenSize() (width, height int32, err error)
}

// click/double-click timing.
const (
	clickHoldDelay   = 10 * time.Millisecond
	doubleClickDelay = 50 * time.Millisecond
)

// Shortcut is a modifier set plus a key code, used by the block policy.
type Shortcut struct {
	KeyCode   uint32
	Modifiers map[wireproto.KeyModifier]bool
}

// Injector wraps an InputBackend with the policy gate and timing the
// session engine needs.
type Injector struct {
	backend        InputBackend
	blockShortcuts bool
	denyList       []Shortcut
}

// New creates an Injector. blockShortcuts enables the default deny-list
// policy gate.
func New(backend InputBackend, blockShortcuts bool) *Injector {
	return &Injector{
		backend:        backend,
		blockShortcuts: blockShortcuts,
		denyList:       defaultDenyList(),
	}
}

// SetBlockShortcuts toggles the policy gate at runtime.
func (in *Injector) SetBlockShortcuts(block bool) {
	in.blockShortcuts = block
}

func wrapSystemError(err error) error {
	if err == nil {
		return nil
	}
	return &ErrSystemError{Cause: err}
}

// MouseMoveAbsolute performs an absolute mouse move.
func (in *Injector) MouseMoveAbsolute(x, y int32) error {
	return wrapSystemError(in.backend.MouseMoveAbs(x, y))
}

// MouseMoveRelative performs a relative mouse move.
func (in *Injector) MouseMoveRelative(dx, dy int32) error {
	return wrapSystemError(in.backend.MouseMoveRel(dx, dy))
}

// MouseDown presses a mouse button.
func (in *Injector) MouseDown(button wireproto.MouseButton) error {
	if !validButton(button) {
		return ErrInvalidInput
	}
	return wrapSystemError(in.backend.MouseButton(true, button))
}

// MouseUp releases a mouse button.
func (in *Injector) MouseUp(button wireproto.MouseButton) error {
	if !validButton(button) {
		return ErrInvalidInput
	}
	return wrapSystemError(in.backend.MouseButton(false, button))
}

// Click performs a down, a short delay, then an up.
func (in *Injector) Click(button wireproto.MouseButton) error {
	if err := in.MouseDown(button); err != nil {
		return err
	}
	time.Sleep(clickHoldDelay)
	return in.MouseUp(button)
}

// DoubleClick performs two Click sequences separated by a short delay.
func (in *Injector) DoubleClick(button wireproto.MouseButton) error {
	if err := in.Click(button); err != nil {
		return err
	}
	time.Sleep(doubleClickDelay)
	return in.Click(button)
}

// Scroll performs a horizontal/vertical scroll.
func (in *Injector) Scroll(dx, dy int32) error {
	return wrapSystemError(in.backend.Scroll(dx, dy))
}

// KeyDown presses a key, honoring the shortcut policy gate.
func (in *Injector) KeyDown(code uint32, modifiers []wireproto.KeyModifier) error {
	if in.blocked(code, modifiers) {
		return ErrInvalidInput
	}
	return wrapSystemError(in.backend.Key(true, code))
}

// KeyUp releases a key.
func (in *Injector) KeyUp(code uint32, modifiers []wireproto.KeyModifier) error {
	if in.blocked(code, modifiers) {
		return ErrInvalidInput
	}
	return wrapSystemError(in.backend.Key(false, code))
}

// InputText translates a string into key events.
func (in *Injector) InputText(text string) error {
	return wrapSystemError(in.backend.InputText(text))
}

// KeyCombo presses codes in order and releases them in reverse order.
// modifiers are only checked against the shortcut policy; they are not
// pressed or held.
func (in *Injector) KeyCombo(codes []uint32, modifiers []wireproto.KeyModifier) error {
	for _, code := range codes {
		if in.blocked(code, modifiers) {
			return ErrInvalidInput
		}
	}
	for _, code := range codes {
		if err := wrapSystemError(in.backend.Key(true, code)); err != nil {
			return err
		}
	}
	for i := len(codes) - 1; i >= 0; i-- {
		if err := wrapSystemError(in.backend.Key(false, codes[i])); err != nil {
			return err
		}
	}
	return nil
}

// CursorPosition reports the current OS cursor position.
func (in *Injector) CursorPosition() (x, y int32, err error) {
	return in.backend.CursorPosition()
}

// ScreenSize reports the screen dimensions used for coordinate mapping.
func (in *Injector) ScreenSize() (width, height int32, err error) {
	return in.backend.ScreenSize()
}

func validButton(b wireproto.MouseButton) bool {
	switch b {
	case wireproto.MouseButtonLeft, wireproto.MouseButtonRight, wireproto.MouseButtonMiddle,
		wireproto.MouseButtonBack, wireproto.MouseButtonForward:
		return true
	default:
		return false
	}
}

// blocked reports whether code+modifiers match a reserved shortcut while
// the policy gate is enabled. Checked before any OS call.
func (in *Injector) blocked(code uint32, modifiers []wireproto.KeyModifier) bool {
	if !in.blockShortcuts {
		return false
	}
	modSet := make(map[wireproto.KeyModifier]bool, len(modifiers))
	for _, m := range modifiers {
		modSet[m] = true
	}
	for _, s := range in.denyList {
		if s.KeyCode != code {
			continue
		}
		if modifiersMatch(s.Modifiers, modSet) {
			return true
		}
	}
	return false
}

func modifiersMatch(want, got map[wireproto.KeyModifier]bool) bool {
	if len(want) != len(got) {
		return false
	}
	for m := range want {
		if !got[m] {
			return false
		}
	}
	return true
}

// Reserved key codes for the default deny-list, using the common
// US-layout virtual key codes: Delete=46, F4=115, R=82.
const (
	keyCodeDelete = 46
	keyCodeF4     = 115
	keyCodeR      = 82
)

func defaultDenyList() []Shortcut {
	return []Shortcut{
		{
			KeyCode: keyCodeDelete,
			Modifiers: map[wireproto.KeyModifier]bool{
				wireproto.KeyModifierControl: true,
				wireproto.KeyModifierAlt:     true,
			},
		},
		{
			KeyCode: keyCodeF4,
			Modifiers: map[wireproto.KeyModifier]bool{
				wireproto.KeyModifierAlt: true,
			},
		},
		{
			KeyCode: keyCodeR,
			Modifiers: map[wireproto.KeyModifier]bool{
				wireproto.KeyModifierMeta: true,
			},
		},
	}
}
