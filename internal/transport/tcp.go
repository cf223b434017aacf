package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// streamConnection is the length-prefixed framing shared by TCP and
// TLS-TCP: both operate on a net.Conn, differing only in how the
// connection was established.
type streamConnection struct {
	conn    net.Conn
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// NewTCPConnection wraps an accepted or dialed net.Conn in the
// Connection contract, framing each message with a 4-byte length
// prefix.
func NewTCPConnection(conn net.Conn) Connection {
	return &streamConnection{conn: conn}
}

func (c *streamConnection) Send(resp wireproto.Response) error {
	c.applyDeadline()
	if err := wireproto.WriteResponse(c.conn, resp); err != nil {
		return classifyIoError(err)
	}
	return nil
}

func (c *streamConnection) SendRaw(data []byte) error {
	c.applyDeadline()
	if err := wireproto.WriteFrame(c.conn, data); err != nil {
		return classifyIoError(err)
	}
	return nil
}

func (c *streamConnection) Receive() (wireproto.Command, error) {
	c.applyDeadline()
	cmd, err := wireproto.ReadCommand(c.conn)
	if err != nil {
		return wireproto.Command{}, classifyReceiveError(err)
	}
	return cmd, nil
}

func (c *streamConnection) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *streamConnection) applyDeadline() {
	c.mu.Lock()
	d := c.timeout
	c.mu.Unlock()
	if d > 0 {
		c.conn.SetDeadline(time.Now().Add(d))
	} else {
		c.conn.SetDeadline(time.Time{})
	}
}

func (c *streamConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *streamConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func classifyIoError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	return wrapIo(err)
}

// classifyReceiveError maps a ReadCommand failure to an error kind: a
// timed-out deadline is Timeout, a short read or malformed payload is
// Protocol, anything else (connection reset, clean EOF) is Io.
func classifyReceiveError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, wireproto.ErrFrameTooLarge) || errors.Is(err, io.ErrUnexpectedEOF) {
		return wrapProtocol(err)
	}
	if errors.Is(err, io.EOF) || errors.As(err, &netErr) {
		return wrapIo(err)
	}
	// Anything else reaching here came from encoding/json during
	// DecodeCommand: malformed JSON is Protocol.
	return wrapProtocol(err)
}
