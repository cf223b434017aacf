// Package transport implements the Connection adapter: a uniform
// blocking request/response contract over TCP, TLS-TCP, WebSocket, and
// WebRTC data-channel byte streams.
package transport

import (
	"errors"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// ErrIo wraps an underlying transport read/write failure.
type ErrIo struct{ Cause error }

func (e *ErrIo) Error() string { return "transport: io: " + e.Cause.Error() }
func (e *ErrIo) Unwrap() error { return e.Cause }

// ErrTimeout is returned when receive/send exceeds the configured
// deadline.
var ErrTimeout = errors.New("transport: timeout")

// ErrProtocol wraps a frame-decode or validation failure.
type ErrProtocol struct{ Cause error }

func (e *ErrProtocol) Error() string { return "transport: protocol: " + e.Cause.Error() }
func (e *ErrProtocol) Unwrap() error { return e.Cause }

// ErrClosed is returned by operations on a closed Connection.
var ErrClosed = errors.New("transport: connection closed")

// Connection is the capability set every transport variant implements.
// Each method blocks from the caller's viewpoint.
type Connection interface {
	Send(resp wireproto.Response) error
	SendRaw(data []byte) error
	Receive() (wireproto.Command, error)
	SetTimeout(d time.Duration)
	RemoteAddr() string
	Close() error
}

func wrapIo(err error) error {
	if err == nil {
		return nil
	}
	return &ErrIo{Cause: err}
}

func wrapProtocol(err error) error {
	if err == nil {
		return nil
	}
	return &ErrProtocol{Cause: err}
}
