package capture

// stubGrabber is the out-of-scope platform backend placeholder. Per the
// collaborator boundary, real screen acquisition is provided by an
// injected ScreenGrabber at startup; this stub only exists so the binary
// links and reports a clear error when no platform backend was wired in.
type stubGrabber struct{}

// NewStubGrabber returns a ScreenGrabber that reports ErrNotSupported for
// every operation. Used as the default when no platform backend is
// configured.
func NewStubGrabber() ScreenGrabber {
	return stubGrabber{}
}

func (stubGrabber) ListMonitors() ([]Monitor, error) {
	return nil, ErrNotSupported
}

func (stubGrabber) Grab(int) (*Frame, error) {
	return nil, ErrNotSupported
}
