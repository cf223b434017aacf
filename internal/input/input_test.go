package input

import (
	"errors"
	"testing"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

type call struct {
	name string
	a, b int32
}

type fakeBackend struct {
	calls []call
	err   error
}

func (f *fakeBackend) MouseMoveAbs(x, y int32) error {
	f.calls = append(f.calls, call{"moveAbs", x, y})
	return f.err
}
func (f *fakeBackend) MouseMoveRel(dx, dy int32) error {
	f.calls = append(f.calls, call{"moveRel", dx, dy})
	return f.err
}
func (f *fakeBackend) MouseButton(down bool, button wireproto.MouseButton) error {
	name := "buttonUp"
	if down {
		name = "buttonDown"
	}
	f.calls = append(f.calls, call{name, 0, 0})
	return f.err
}
func (f *fakeBackend) Scroll(dx, dy int32) error {
	f.calls = append(f.calls, call{"scroll", dx, dy})
	return f.err
}
func (f *fakeBackend) Key(down bool, code uint32) error {
	name := "keyUp"
	if down {
		name = "keyDown"
	}
	f.calls = append(f.calls, call{name, int32(code), 0})
	return f.err
}
func (f *fakeBackend) InputText(text string) error {
	f.calls = append(f.calls, call{"inputText", 0, 0})
	return f.err
}
func (f *fakeBackend) CursorPosition() (int32, int32, error) { return 5, 6, f.err }
func (f *fakeBackend) ScreenSize() (int32, int32, error)     { return 1920, 1080, f.err }

func TestClickTimingOrder(t *testing.T) {
	backend := &fakeBackend{}
	in := New(backend, false)

	start := time.Now()
	if err := in.Click(wireproto.MouseButtonLeft); err != nil {
		t.Fatalf("Click: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < clickHoldDelay {
		t.Fatalf("expected at least %v between down and up, took %v", clickHoldDelay, elapsed)
	}
	if len(backend.calls) != 2 || backend.calls[0].name != "buttonDown" || backend.calls[1].name != "buttonUp" {
		t.Fatalf("unexpected call sequence: %+v", backend.calls)
	}
}

func TestDoubleClickTimingAndSequence(t *testing.T) {
	backend := &fakeBackend{}
	in := New(backend, false)

	start := time.Now()
	if err := in.DoubleClick(wireproto.MouseButtonLeft); err != nil {
		t.Fatalf("DoubleClick: %v", err)
	}
	elapsed := time.Since(start)
	minExpected := 2*clickHoldDelay + doubleClickDelay
	if elapsed < minExpected {
		t.Fatalf("expected at least %v, took %v", minExpected, elapsed)
	}
	if len(backend.calls) != 4 {
		t.Fatalf("expected 4 button calls, got %d: %+v", len(backend.calls), backend.calls)
	}
}

func TestInvalidButtonRejected(t *testing.T) {
	backend := &fakeBackend{}
	in := New(backend, false)

	if err := in.MouseDown(wireproto.MouseButton("Nonexistent")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("expected no backend call for invalid button, got %+v", backend.calls)
	}
}

func TestBlockedShortcutRejectedBeforeBackendCall(t *testing.T) {
	backend := &fakeBackend{}
	in := New(backend, true)

	err := in.KeyDown(keyCodeDelete, []wireproto.KeyModifier{wireproto.KeyModifierControl, wireproto.KeyModifierAlt})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for Ctrl+Alt+Del, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("expected no backend call for blocked shortcut, got %+v", backend.calls)
	}
}

func TestBlockedShortcutAllowedWhenPolicyDisabled(t *testing.T) {
	backend := &fakeBackend{}
	in := New(backend, false)

	err := in.KeyDown(keyCodeF4, []wireproto.KeyModifier{wireproto.KeyModifierAlt})
	if err != nil {
		t.Fatalf("expected Alt+F4 to pass through when blockShortcuts is disabled, got %v", err)
	}
	if len(backend.calls) != 1 {
		t.Fatalf("expected one backend call, got %+v", backend.calls)
	}
}

func TestModifierSupersetDoesNotMatchShortcut(t *testing.T) {
	backend := &fakeBackend{}
	in := New(backend, true)

	// Ctrl+Shift+Alt+Del is not the same combination as Ctrl+Alt+Del.
	err := in.KeyDown(keyCodeDelete, []wireproto.KeyModifier{
		wireproto.KeyModifierControl, wireproto.KeyModifierAlt, wireproto.KeyModifierShift,
	})
	if err != nil {
		t.Fatalf("expected superset combination to pass, got %v", err)
	}
}

func TestSystemErrorIsWrappedAndUnwraps(t *testing.T) {
	cause := errors.New("boom")
	backend := &fakeBackend{err: cause}
	in := New(backend, false)

	err := in.MouseMoveAbsolute(1, 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped error to unwrap to cause, got %v", err)
	}
}

func TestKeyComboPressesInOrderAndReleasesReversed(t *testing.T) {
	backend := &fakeBackend{}
	in := New(backend, false)

	if err := in.KeyCombo([]uint32{10, 20, 30}, nil); err != nil {
		t.Fatalf("KeyCombo: %v", err)
	}
	want := []int32{10, 20, 30, 30, 20, 10}
	if len(backend.calls) != 6 {
		t.Fatalf("expected 6 calls, got %d", len(backend.calls))
	}
	for i, w := range want {
		if backend.calls[i].a != w {
			t.Fatalf("call %d: expected code %d, got %d", i, w, backend.calls[i].a)
		}
	}
}

func TestStubBackendReportsNotSupported(t *testing.T) {
	stub := NewStubBackend()
	if _, _, err := stub.CursorPosition(); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}
