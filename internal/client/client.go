// Package client implements the viewer-side session: it dials a
// server, authenticates, and maintains an outbox fed by the UI and an
// inbox the UI reads decoded Responses from, reconnecting with backoff
// on any transport failure.
package client

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/logging"
	"github.com/breeze-rmm/remote-desktop/internal/transport"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

var log = logging.L("client")

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

// StateChange reports a transition in the client's connection lifecycle
// for the UI to render.
type StateChange struct {
	State ConnectionState
	Err   error
}

// ConnectionState is re-exported for callers that only import client.
type ConnectionState = wireproto.ConnectionState

// Client drives one viewer-side connection: a command outbox fed by the
// UI, a response inbox the UI drains, and a background reconnect loop.
type Client struct {
	cfg Config

	outbox chan wireproto.Command
	inbox  chan wireproto.Response
	states chan StateChange

	mu       sync.Mutex
	conn     transport.ClientConnection
	state    ConnectionState
	running  bool
	done     chan struct{}
	stopOnce sync.Once

	pendingPingMu sync.Mutex
	pendingPingAt time.Time
	lastLatency   time.Duration
}

// New creates a Client that has not yet dialed anything; call Start to
// begin the reconnect loop.
func New(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		outbox: make(chan wireproto.Command, 64),
		inbox:  make(chan wireproto.Response, 64),
		states: make(chan StateChange, 8),
		state:  wireproto.ConnectionStateDisconnected,
		done:   make(chan struct{}),
	}
}

// Inbox returns the channel the UI should read decoded Responses from.
func (c *Client) Inbox() <-chan wireproto.Response { return c.inbox }

// States returns the channel the UI should read connection-state
// transitions from.
func (c *Client) States() <-chan StateChange { return c.states }

// Latency returns the most recently measured Ping/Pong round trip.
func (c *Client) Latency() time.Duration {
	c.pendingPingMu.Lock()
	defer c.pendingPingMu.Unlock()
	return c.lastLatency
}

// Send enqueues a Command for delivery on the current connection. It
// does not block on the network; only on the outbox being full.
func (c *Client) Send(cmd wireproto.Command) error {
	select {
	case c.outbox <- cmd:
		return nil
	case <-c.done:
		return errors.New("client: stopped")
	}
}

// Start begins the reconnect loop in the background. Calling Start
// twice is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.reconnectLoop()
}

// Stop ends the reconnect loop and closes the current connection.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.running = false
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
}

func (c *Client) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	select {
	case c.states <- StateChange{State: state, Err: err}:
	default:
		// UI isn't draining states fast enough; the current state is
		// still available via State().
	}
}

// State reports the client's current connection lifecycle state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) reconnectLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.setState(wireproto.ConnectionStateConnecting, nil)
		conn, err := c.dial()
		if err != nil {
			c.setState(wireproto.ConnectionStateError, err)
			log.Warn("connect failed", "server", c.cfg.ServerAddr, "error", err)

			sleep := backoffWithJitter(backoff)
			select {
			case <-c.done:
				return
			case <-time.After(sleep):
			}
			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff

		if err := c.authenticate(conn); err != nil {
			log.Warn("authentication failed", "error", err)
			conn.Close()
			c.setState(wireproto.ConnectionStateError, err)
			select {
			case <-c.done:
				return
			case <-time.After(backoffWithJitter(backoff)):
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(wireproto.ConnectionStateConnected, nil)
		log.Info("connected", "server", c.cfg.ServerAddr, "transport", c.cfg.Transport)

		c.runSession(conn)

		c.mu.Lock()
		c.conn = nil
		stillRunning := c.running
		c.mu.Unlock()
		if !stillRunning {
			return
		}

		select {
		case <-c.done:
			return
		default:
		}
		c.setState(wireproto.ConnectionStateDisconnected, nil)
	}
}

func backoffWithJitter(backoff time.Duration) time.Duration {
	jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
	sleep := backoff + jitter
	if sleep < 0 {
		sleep = backoff
	}
	return sleep
}

func (c *Client) dial() (transport.ClientConnection, error) {
	switch c.cfg.Transport {
	case "", "tcp":
		return transport.DialTCPClient(c.cfg.ServerAddr, c.cfg.ConnectTimeout)
	case "tls":
		return transport.DialTLSClient(c.cfg.ServerAddr, c.cfg.TLSConfig)
	case "websocket":
		return transport.DialWebSocketClient(c.cfg.ServerAddr, nil)
	default:
		return nil, fmt.Errorf("client: unsupported transport %q", c.cfg.Transport)
	}
}

func (c *Client) authenticate(conn transport.ClientConnection) error {
	if c.cfg.Username == "" && c.cfg.PasswordHash == "" {
		return nil
	}
	c.setState(wireproto.ConnectionStateAuthenticating, nil)
	conn.SetTimeout(c.cfg.ConnectTimeout)
	cmd := wireproto.Command{Authenticate: &wireproto.AuthenticatePayload{
		Username:     c.cfg.Username,
		PasswordHash: c.cfg.PasswordHash,
	}}
	if err := conn.Send(cmd); err != nil {
		return err
	}
	resp, err := conn.Receive()
	if err != nil {
		return err
	}
	if resp.AuthResult == nil {
		return fmt.Errorf("client: expected AuthResult, got %s", resp.Kind())
	}
	if !resp.AuthResult.Success {
		return fmt.Errorf("client: authentication rejected: %s", resp.AuthResult.Message)
	}
	return nil
}

// runSession pumps the outbox to the wire and the wire to the inbox
// until the connection fails or Stop is called, then returns so
// reconnectLoop can redial.
func (c *Client) runSession(conn transport.ClientConnection) {
	sessionDone := make(chan struct{})
	var once sync.Once
	closeSession := func() { once.Do(func() { close(sessionDone) }) }

	go c.readPump(conn, closeSession)
	c.writePump(conn, sessionDone)
}

func (c *Client) readPump(conn transport.ClientConnection, closeSession func()) {
	defer closeSession()
	conn.SetTimeout(0)
	for {
		resp, err := conn.Receive()
		if err != nil {
			log.Debug("read ended", "error", err)
			return
		}
		if resp.Kind() == wireproto.RespKindPong {
			c.recordLatency(resp.Pong)
		}
		select {
		case c.inbox <- resp:
		default:
			log.Warn("inbox full, dropping response", "kind", resp.Kind())
		}
	}
}

func (c *Client) writePump(conn transport.ClientConnection, sessionDone <-chan struct{}) {
	pingTicker := time.NewTicker(c.pingInterval())
	defer pingTicker.Stop()
	pollTicker := time.NewTicker(c.pollInterval())
	defer pollTicker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-sessionDone:
			return

		case cmd := <-c.outbox:
			if err := c.writeCommand(conn, cmd); err != nil {
				return
			}

		case <-pingTicker.C:
			if err := c.sendPing(conn); err != nil {
				return
			}

		case <-pollTicker.C:
			quality := c.cfg.Quality
			cmd := wireproto.Command{RequestScreenshot: &wireproto.RequestScreenshotPayload{Quality: &quality}}
			if err := c.writeCommand(conn, cmd); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeCommand(conn transport.ClientConnection, cmd wireproto.Command) error {
	if err := conn.Send(cmd); err != nil {
		log.Debug("write failed", "error", err)
		return err
	}
	return nil
}

func (c *Client) sendPing(conn transport.ClientConnection) error {
	now := time.Now()
	c.pendingPingMu.Lock()
	c.pendingPingAt = now
	c.pendingPingMu.Unlock()

	cmd := wireproto.Command{Ping: &wireproto.PingPayload{Timestamp: uint64(now.UnixMilli())}}
	return c.writeCommand(conn, cmd)
}

// recordLatency measures round trip from a Pong that answers our own
// Ping. The server also emits unsolicited keep-alive Pongs with
// OriginalTimestamp left zero; those carry no latency information and
// are ignored.
func (c *Client) recordLatency(pong *wireproto.PongPayload) {
	if pong.OriginalTimestamp == 0 {
		return
	}
	sent := time.UnixMilli(int64(pong.OriginalTimestamp))
	latency := time.Since(sent)
	if latency < 0 {
		latency = 0
	}
	c.pendingPingMu.Lock()
	c.lastLatency = latency
	c.pendingPingMu.Unlock()
}

func (c *Client) pingInterval() time.Duration {
	if c.cfg.PingInterval <= 0 {
		return time.Second
	}
	return c.cfg.PingInterval
}

func (c *Client) pollInterval() time.Duration {
	if c.cfg.PollInterval <= 0 {
		return 33 * time.Millisecond
	}
	return c.cfg.PollInterval
}
