package transport

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 16 * 1024 * 1024
)

// wsConnection implements Connection over a gorilla/websocket.Conn.
// WebSocket transports send one payload per WS frame without the
// 4-byte length prefix since WS framing already delimits messages.
type wsConnection struct {
	conn       *websocket.Conn
	remoteAddr string
	writeMu    sync.Mutex
	readMu     sync.Mutex
	timeout    time.Duration
	closeOnce  sync.Once
}

// NewWebSocketConnection wraps an upgraded *websocket.Conn in the
// Connection contract.
func NewWebSocketConnection(conn *websocket.Conn) Connection {
	conn.SetReadLimit(wsMaxMessageSize)
	return &wsConnection{conn: conn, remoteAddr: conn.RemoteAddr().String()}
}

// UpgradeHTTP upgrades an inbound HTTP request to a WebSocket
// connection and wraps it as a Connection.
func UpgradeHTTP(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader) (Connection, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, wrapIo(err)
	}
	return NewWebSocketConnection(conn), nil
}

// DialWebSocket connects to a ws(s):// URL and returns a Connection.
func DialWebSocket(url string, headers http.Header) (Connection, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, headers)
	if err != nil {
		return nil, wrapIo(err)
	}
	return NewWebSocketConnection(conn), nil
}

func (c *wsConnection) Send(resp wireproto.Response) error {
	data, err := wireproto.EncodeResponse(resp)
	if err != nil {
		return wrapProtocol(err)
	}
	return c.writeMessage(websocket.TextMessage, data)
}

func (c *wsConnection) SendRaw(data []byte) error {
	return c.writeMessage(websocket.BinaryMessage, data)
}

func (c *wsConnection) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return classifyWsError(err)
	}
	return nil
}

func (c *wsConnection) Receive() (wireproto.Command, error) {
	c.readMu.Lock()
	if c.timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}
	_, data, err := c.conn.ReadMessage()
	c.readMu.Unlock()
	if err != nil {
		return wireproto.Command{}, classifyWsError(err)
	}
	cmd, err := wireproto.DecodeCommand(data)
	if err != nil {
		return wireproto.Command{}, wrapProtocol(err)
	}
	return cmd, nil
}

func (c *wsConnection) SetTimeout(d time.Duration) {
	c.readMu.Lock()
	c.timeout = d
	c.readMu.Unlock()
}

func (c *wsConnection) RemoteAddr() string {
	return c.remoteAddr
}

func (c *wsConnection) Close() error {
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

func classifyWsError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		return wrapProtocol(err)
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return ErrTimeout
	}
	return wrapIo(err)
}
