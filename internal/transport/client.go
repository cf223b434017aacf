package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// ClientConnection is the viewer-side mirror of Connection: it sends
// Commands and receives Responses, the opposite direction from a
// server's accepted connections. Transports that implement Connection
// for the server side get a ClientConnection counterpart here instead
// of a bidirectional interface, since a single session never needs
// both directions at once.
type ClientConnection interface {
	Send(cmd wireproto.Command) error
	Receive() (wireproto.Response, error)
	SetTimeout(d time.Duration)
	RemoteAddr() string
	Close() error
}

// streamClientConnection is the dial-side counterpart to
// streamConnection, framing with the same 4-byte length prefix.
type streamClientConnection struct {
	conn    net.Conn
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// NewTCPClientConnection wraps a dialed net.Conn as a ClientConnection.
func NewTCPClientConnection(conn net.Conn) ClientConnection {
	return &streamClientConnection{conn: conn}
}

// DialTCPClient connects to addr and wraps the result as a
// ClientConnection.
func DialTCPClient(addr string, timeout time.Duration) (ClientConnection, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, wrapIo(err)
	}
	return NewTCPClientConnection(conn), nil
}

func (c *streamClientConnection) Send(cmd wireproto.Command) error {
	c.applyDeadline()
	if err := wireproto.WriteCommand(c.conn, cmd); err != nil {
		return classifyIoError(err)
	}
	return nil
}

func (c *streamClientConnection) Receive() (wireproto.Response, error) {
	c.applyDeadline()
	resp, err := wireproto.ReadResponse(c.conn)
	if err != nil {
		return wireproto.Response{}, classifyReceiveError(err)
	}
	return resp, nil
}

func (c *streamClientConnection) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *streamClientConnection) applyDeadline() {
	c.mu.Lock()
	d := c.timeout
	c.mu.Unlock()
	if d > 0 {
		c.conn.SetDeadline(time.Now().Add(d))
	} else {
		c.conn.SetDeadline(time.Time{})
	}
}

func (c *streamClientConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *streamClientConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// DialTLSClient connects to addr over TLS and returns a
// ClientConnection framed identically to plain TCP.
func DialTLSClient(addr string, cfg *tls.Config) (ClientConnection, error) {
	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, wrapIo(err)
	}
	return NewTCPClientConnection(conn), nil
}

// wsClientConnection is the dial-side counterpart to wsConnection.
type wsClientConnection struct {
	conn       *websocket.Conn
	remoteAddr string
	writeMu    sync.Mutex
	readMu     sync.Mutex
	timeout    time.Duration
	closeOnce  sync.Once
}

// NewWebSocketClientConnection wraps a dialed *websocket.Conn as a
// ClientConnection.
func NewWebSocketClientConnection(conn *websocket.Conn) ClientConnection {
	conn.SetReadLimit(wsMaxMessageSize)
	return &wsClientConnection{conn: conn, remoteAddr: conn.RemoteAddr().String()}
}

// DialWebSocketClient connects to a ws(s):// URL and returns a
// ClientConnection.
func DialWebSocketClient(url string, headers http.Header) (ClientConnection, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, headers)
	if err != nil {
		return nil, wrapIo(err)
	}
	return NewWebSocketClientConnection(conn), nil
}

func (c *wsClientConnection) Send(cmd wireproto.Command) error {
	data, err := wireproto.EncodeCommand(cmd)
	if err != nil {
		return wrapProtocol(err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return classifyWsError(err)
	}
	return nil
}

func (c *wsClientConnection) Receive() (wireproto.Response, error) {
	c.readMu.Lock()
	if c.timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}
	_, data, err := c.conn.ReadMessage()
	c.readMu.Unlock()
	if err != nil {
		return wireproto.Response{}, classifyWsError(err)
	}
	resp, err := wireproto.DecodeResponse(data)
	if err != nil {
		return wireproto.Response{}, wrapProtocol(err)
	}
	return resp, nil
}

func (c *wsClientConnection) SetTimeout(d time.Duration) {
	c.readMu.Lock()
	c.timeout = d
	c.readMu.Unlock()
}

func (c *wsClientConnection) RemoteAddr() string {
	return c.remoteAddr
}

func (c *wsClientConnection) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		c.writeMu.Unlock()
		closeErr = c.conn.Close()
	})
	return closeErr
}
