// Package clipboard implements the clipboard bridge: fetching and
// setting platform clipboard content via a collaborator backend, for
// the RequestClipboardContent and SetClipboardContent commands.
package clipboard

import (
	"errors"
)

// ContentType identifies the kind of clipboard payload.
type ContentType string

const (
	ContentTypeText  ContentType = "Text"
	ContentTypeImage ContentType = "Image"
	ContentTypeNone  ContentType = "None"
)

// Content is a clipboard snapshot.
type Content struct {
	Type        ContentType
	Text        string
	Image       []byte
	ImageFormat string
}

// ErrNotSupported is returned by backends with no clipboard access on
// the running platform.
var ErrNotSupported = errors.New("clipboard: not supported on this platform")

// Backend is the collaborator this package depends on but does not
// implement: platform clipboard access.
type Backend interface {
	GetContent() (Content, error)
	SetContent(Content) error
}

// Bridge wraps a Backend with a policy gate controlling whether clients
// may read/write the host clipboard at all.
type Bridge struct {
	backend Backend
	allowed bool
}

// ErrPolicyDenied is returned when clipboard access is disabled by
// server policy, mapped by the session layer to Error{403}.
var ErrPolicyDenied = errors.New("clipboard: denied by policy")

// New creates a Bridge. allowed controls whether Get/Set are permitted.
func New(backend Backend, allowed bool) *Bridge {
	return &Bridge{backend: backend, allowed: allowed}
}

// SetAllowed toggles the policy gate at runtime.
func (b *Bridge) SetAllowed(allowed bool) {
	b.allowed = allowed
}

// Get fetches the current clipboard content.
func (b *Bridge) Get() (Content, error) {
	if !b.allowed {
		return Content{}, ErrPolicyDenied
	}
	return b.backend.GetContent()
}

// Set writes new clipboard content.
func (b *Bridge) Set(content Content) error {
	if !b.allowed {
		return ErrPolicyDenied
	}
	return b.backend.SetContent(content)
}
