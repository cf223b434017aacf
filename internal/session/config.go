package session

import (
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// ControlPolicy selects how conflicting input from multiple viewers is
// arbitrated.
type ControlPolicy string

const (
	ControlPolicyAny           ControlPolicy = "any"
	ControlPolicySingleWriter  ControlPolicy = "single-writer"
	ControlPolicyExplicitGrant ControlPolicy = "explicit-grant"
)

// Config parameterizes a session's policy and defaults.
type Config struct {
	RequireAuth           bool
	ClientTimeout         time.Duration
	KeepAliveInterval     time.Duration
	ControlPolicy         ControlPolicy
	AllowClipboard        bool
	AllowRunApplication   bool
	RunApplicationTimeout time.Duration
	DefaultQuality        uint8
	DefaultImageFormat    wireproto.ImageFormat
	DefaultMonitor        uint
	MaxProtocolErrors     int
}

// DefaultConfig mirrors the source's baseline policy: auth required,
// input open to any authenticated viewer, application execution denied.
func DefaultConfig() Config {
	return Config{
		RequireAuth:           true,
		ClientTimeout:         30 * time.Second,
		KeepAliveInterval:     15 * time.Second,
		ControlPolicy:         ControlPolicyAny,
		AllowClipboard:        true,
		AllowRunApplication:   false,
		RunApplicationTimeout: 30 * time.Second,
		DefaultQuality:        75,
		DefaultImageFormat:    wireproto.ImageFormatJPEG,
		MaxProtocolErrors:     3,
	}
}
