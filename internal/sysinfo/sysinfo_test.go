package sysinfo

import "testing"

type fakeScreen struct {
	w, h int32
	err  error
}

func (f *fakeScreen) ScreenSize() (int32, int32, error) { return f.w, f.h, f.err }

func TestSampleFillsScreenDimensionsWhenAvailable(t *testing.T) {
	s := New(&fakeScreen{w: 1920, h: 1080})

	payload, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if payload.ScreenWidth != 1920 || payload.ScreenHeight != 1080 {
		t.Fatalf("expected 1920x1080, got %dx%d", payload.ScreenWidth, payload.ScreenHeight)
	}
}

func TestSampleWithoutScreenSizerLeavesDimensionsZero(t *testing.T) {
	s := New(nil)

	payload, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if payload.ScreenWidth != 0 || payload.ScreenHeight != 0 {
		t.Fatalf("expected zero dimensions without a ScreenSizer, got %dx%d", payload.ScreenWidth, payload.ScreenHeight)
	}
}

func TestSampleReturnsNonNegativeValues(t *testing.T) {
	s := New(nil)

	payload, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if payload.CPUPercent < 0 || payload.MemPercent < 0 || payload.DiskPercent < 0 {
		t.Fatalf("expected non-negative metrics, got %+v", payload)
	}
}
