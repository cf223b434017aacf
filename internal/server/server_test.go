package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/auth"
	"github.com/breeze-rmm/remote-desktop/internal/capture"
	"github.com/breeze-rmm/remote-desktop/internal/clipboard"
	"github.com/breeze-rmm/remote-desktop/internal/filetransfer"
	"github.com/breeze-rmm/remote-desktop/internal/input"
	"github.com/breeze-rmm/remote-desktop/internal/session"
	"github.com/breeze-rmm/remote-desktop/internal/sysinfo"
	"github.com/breeze-rmm/remote-desktop/internal/transport"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// fakeConn blocks in Receive until a command is pushed, an error is
// queued, or Close is called, modeling a live but otherwise idle peer.
type fakeConn struct {
	remote string
	cmds   chan wireproto.Command
	errs   chan error

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeCh   chan struct{}
	sent      []wireproto.Response
}

func newFakeConn(remote string) *fakeConn {
	return &fakeConn{
		remote:  remote,
		cmds:    make(chan wireproto.Command, 4),
		errs:    make(chan error, 4),
		closeCh: make(chan struct{}),
	}
}

func (c *fakeConn) Send(resp wireproto.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, resp)
	return nil
}

func (c *fakeConn) SendRaw([]byte) error { return nil }

func (c *fakeConn) Receive() (wireproto.Command, error) {
	select {
	case cmd := <-c.cmds:
		return cmd, nil
	case err := <-c.errs:
		return wireproto.Command{}, err
	case <-c.closeCh:
		return wireproto.Command{}, transport.ErrClosed
	}
}

func (c *fakeConn) SetTimeout(time.Duration) {}
func (c *fakeConn) RemoteAddr() string       { return c.remote }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.closeCh)
	})
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) responses() []wireproto.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wireproto.Response, len(c.sent))
	copy(out, c.sent)
	return out
}

// fakeAcceptor hands out pre-queued connections, then blocks until
// closed, matching the net.Listener.Accept contract used by tcpAcceptor.
type fakeAcceptor struct {
	conns chan transport.Connection
	done  chan struct{}
	once  sync.Once
}

func newFakeAcceptor() *fakeAcceptor {
	return &fakeAcceptor{conns: make(chan transport.Connection, 8), done: make(chan struct{})}
}

func (a *fakeAcceptor) Accept() (transport.Connection, error) {
	select {
	case c := <-a.conns:
		return c, nil
	case <-a.done:
		return nil, errors.New("acceptor closed")
	}
}

func (a *fakeAcceptor) Close() error {
	a.once.Do(func() { close(a.done) })
	return nil
}

func (a *fakeAcceptor) Addr() string { return "fake:0" }

type fakeGrabber struct{}

func (fakeGrabber) ListMonitors() ([]capture.Monitor, error) {
	return []capture.Monitor{{Index: 0, Width: 2, Height: 2, Primary: true}}, nil
}

func (fakeGrabber) Grab(monitorIndex int) (*capture.Frame, error) {
	return &capture.Frame{MonitorIndex: monitorIndex, Timestamp: time.Now(), Width: 2, Height: 2, Pix: make([]byte, 2*2*4)}, nil
}

type fakeInputBackend struct{}

func (fakeInputBackend) MouseMoveAbs(x, y int32) error                             { return nil }
func (fakeInputBackend) MouseMoveRel(dx, dy int32) error                           { return nil }
func (fakeInputBackend) MouseButton(down bool, button wireproto.MouseButton) error { return nil }
func (fakeInputBackend) Scroll(dx, dy int32) error                                 { return nil }
func (fakeInputBackend) Key(down bool, code uint32) error                          { return nil }
func (fakeInputBackend) InputText(text string) error                               { return nil }
func (fakeInputBackend) CursorPosition() (int32, int32, error)                     { return 0, 0, nil }
func (fakeInputBackend) ScreenSize() (int32, int32, error)                         { return 1920, 1080, nil }

func testCollaborators(t *testing.T) *session.Collaborators {
	t.Helper()
	return &session.Collaborators{
		Capturer:      capture.New(fakeGrabber{}),
		Injector:      input.New(fakeInputBackend{}, true),
		Clipboard:     clipboard.New(clipboard.NewStubBackend(), true),
		Authenticator: auth.NewStaticTokenAuthenticator("secret-token"),
		SysInfo:       sysinfo.New(nil),
		FileTransfer:  filetransfer.New(filetransfer.Config{ReceiveDir: t.TempDir()}),
		Arbiter:       session.NewControlArbiter(session.ControlPolicyAny),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConnections = 2
	cfg.Session.RequireAuth = false
	return cfg
}

// TestAdmissionControlRejectsBeyondCapacity covers scenario 6: a third
// connection beyond max_connections is accepted at the transport level,
// then closed without a handshake, and does not affect the active count.
func TestAdmissionControlRejectsBeyondCapacity(t *testing.T) {
	collab := testCollaborators(t)
	s := New(testConfig(), newFakeAcceptor(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newFakeConn("127.0.0.1:1")
	b := newFakeConn("127.0.0.1:2")
	s.Adopt(ctx, a)
	s.Adopt(ctx, b)

	waitForCount(t, s, 2)

	third := newFakeConn("127.0.0.1:3")
	s.Adopt(ctx, third)

	if !third.isClosed() {
		t.Fatal("expected third connection to be closed without a handshake")
	}
	if s.ActiveCount() != 2 {
		t.Fatalf("expected active count to remain 2, got %d", s.ActiveCount())
	}
	resps := third.responses()
	if len(resps) != 1 || resps[0].Kind() != wireproto.RespKindError || resps[0].Error.Code != 503 {
		t.Fatalf("expected a single Error{503} before close, got %+v", resps)
	}

	s.Shutdown(context.Background())
}

// TestIdleSweepEvictsStaleSession covers scenario 5: the eviction sweep
// removes a session once its idle time reaches client_timeout.
func TestIdleSweepEvictsStaleSession(t *testing.T) {
	collab := testCollaborators(t)
	cfg := testConfig()
	cfg.Session.ClientTimeout = 30 * time.Millisecond
	cfg.IdleSweepInterval = 10 * time.Millisecond
	s := New(cfg, newFakeAcceptor(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeConn("127.0.0.1:1")
	s.Adopt(ctx, conn)
	waitForCount(t, s, 1)

	go s.idleSweepLoop(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn.isClosed() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !conn.isClosed() {
		t.Fatal("expected idle session's connection to be force-closed by the sweep")
	}

	s.Shutdown(context.Background())
}

// TestShutdownClosesLiveSessionsAndStopsAccepting verifies that Shutdown
// closes a live session's connection and returns once the pool has
// drained; the acceptor's closing is not checked here.
func TestShutdownClosesLiveSessionsAndStopsAccepting(t *testing.T) {
	collab := testCollaborators(t)
	s := New(testConfig(), newFakeAcceptor(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := newFakeConn("127.0.0.1:1")
	s.Adopt(ctx, conn)
	waitForCount(t, s, 1)

	done := make(chan struct{})
	go func() {
		s.Shutdown(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Shutdown to return")
	}

	if !conn.isClosed() {
		t.Fatal("expected live session's connection to be closed by Shutdown")
	}
}

func waitForCount(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.ActiveCount() == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for active count to reach %d, got %d", n, s.ActiveCount())
}
