package clipboard

type stubBackend struct{}

// NewStubBackend returns a Backend that rejects every call with
// ErrNotSupported, mirroring internal/capture and internal/input's
// platform stubs.
func NewStubBackend() Backend { return &stubBackend{} }

func (s *stubBackend) GetContent() (Content, error) { return Content{}, ErrNotSupported }
func (s *stubBackend) SetContent(Content) error     { return ErrNotSupported }
