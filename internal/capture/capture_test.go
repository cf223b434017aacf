package capture

import (
	"sync/atomic"
	"testing"
	"time"
)

type fakeGrabber struct {
	monitors []Monitor
	calls    atomic.Int32
}

func (f *fakeGrabber) ListMonitors() ([]Monitor, error) {
	return f.monitors, nil
}

func (f *fakeGrabber) Grab(monitorIndex int) (*Frame, error) {
	f.calls.Add(1)
	for _, m := range f.monitors {
		if m.Index == monitorIndex {
			return &Frame{
				MonitorIndex: monitorIndex,
				Timestamp:    time.Now(),
				Width:        m.Width,
				Height:       m.Height,
				Pix:          make([]byte, m.Width*m.Height*4),
			}, nil
		}
	}
	return nil, ErrMonitorNotFound
}

func TestListMonitorsPutsPrimaryFirst(t *testing.T) {
	g := &fakeGrabber{monitors: []Monitor{
		{Index: 0, Name: "left"},
		{Index: 1, Name: "right", Primary: true},
		{Index: 2, Name: "third"},
	}}

	ordered, err := ListMonitors(g)
	if err != nil {
		t.Fatalf("ListMonitors: %v", err)
	}
	if len(ordered) != 3 {
		t.Fatalf("expected 3 monitors, got %d", len(ordered))
	}
	if !ordered[0].Primary || ordered[0].Index != 1 {
		t.Fatalf("expected primary monitor first, got %+v", ordered[0])
	}
}

func TestCapturerRateCap(t *testing.T) {
	g := &fakeGrabber{monitors: []Monitor{{Index: 0, Width: 4, Height: 4}}}
	c := New(g)
	c.SetMinInterval(50 * time.Millisecond)

	f1, err := c.Capture(0)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	f2, err := c.Capture(0)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if f1 != f2 {
		t.Fatalf("expected rate-capped call to return identical frame pointer")
	}
	if g.calls.Load() != 1 {
		t.Fatalf("expected exactly one grab call, got %d", g.calls.Load())
	}

	time.Sleep(60 * time.Millisecond)
	if _, err := c.Capture(0); err != nil {
		t.Fatalf("Capture after interval: %v", err)
	}
	if g.calls.Load() != 2 {
		t.Fatalf("expected second grab call after interval elapsed, got %d", g.calls.Load())
	}
}

// failingGrabber fails Grab for one monitor index and delegates the rest.
type failingGrabber struct {
	*fakeGrabber
	failIdx int
}

func (f failingGrabber) Grab(monitorIndex int) (*Frame, error) {
	if monitorIndex == f.failIdx {
		return nil, ErrMonitorNotFound
	}
	return f.fakeGrabber.Grab(monitorIndex)
}

func TestCapturerCaptureAllPartialSuccess(t *testing.T) {
	g := failingGrabber{fakeGrabber: &fakeGrabber{monitors: []Monitor{
		{Index: 0, Width: 2, Height: 2},
		{Index: 5, Width: 2, Height: 2}, // listed, but Grab fails for it
	}}, failIdx: 5}
	c := New(g)
	frames, err := c.CaptureAll()
	if err != nil {
		t.Fatalf("CaptureAll: %v", err)
	}
	if len(frames) != 1 || frames[0].MonitorIndex != 0 {
		t.Fatalf("expected only monitor 0's frame, got %d frames", len(frames))
	}
}

func TestStubGrabberReportsNotSupported(t *testing.T) {
	g := NewStubGrabber()
	if _, err := g.ListMonitors(); err != ErrNotSupported {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	if _, err := g.Grab(0); err != ErrNotSupported {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}
