package session

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
	"github.com/breeze-rmm/remote-desktop/internal/sysinfo"
	"github.com/breeze-rmm/remote-desktop/internal/transport"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// fakeConn is an in-memory transport.Connection: Receive drains a queue
// of pre-supplied commands, Send appends to a captured slice.
type fakeConn struct {
	mu       sync.Mutex
	inbox    []wireproto.Command
	inboxErr []error
	pos      int
	sent     []wireproto.Response
	closed   bool
}

func newFakeConn(cmds ...wireproto.Command) *fakeConn {
	return &fakeConn{inbox: cmds}
}

func (c *fakeConn) Send(resp wireproto.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, resp)
	return nil
}

func (c *fakeConn) SendRaw([]byte) error { return nil }

func (c *fakeConn) Receive() (wireproto.Command, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos < len(c.inboxErr) && c.inboxErr[c.pos] != nil {
		err := c.inboxErr[c.pos]
		c.pos++
		return wireproto.Command{}, err
	}
	if c.pos >= len(c.inbox) {
		return wireproto.Command{}, transport.ErrClosed
	}
	cmd := c.inbox[c.pos]
	c.pos++
	return cmd, nil
}

func (c *fakeConn) SetTimeout(time.Duration) {}
func (c *fakeConn) RemoteAddr() string       { return "127.0.0.1:9000" }
func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) responses() []wireproto.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wireproto.Response, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeGrabber struct{}

func (fakeGrabber) ListMonitors() ([]capture.Monitor, error) {
	return []capture.Monitor{{Index: 0, Width: 4, Height: 4, Primary: true}}, nil
}

func (fakeGrabber) Grab(monitorIndex int) (*capture.Frame, error) {
	pix := make([]byte, 4*4*4)
	for i := range pix {
		pix[i] = 0xAB
	}
	return &capture.Frame{MonitorIndex: monitorIndex, Timestamp: time.Now(), Width: 4, Height: 4, Pix: pix}, nil
}

type fakeInputBackend struct {
	calls []string
}

func (b *fakeInputBackend) MouseMoveAbs(x, y int32) error {
	b.calls = append(b.calls, "moveAbs")
	return nil
}
func (b *fakeInputBackend) MouseMoveRel(dx, dy int32) error { return nil }
func (b *fakeInputBackend) MouseButton(down bool, button wireproto.MouseButton) error {
	b.calls = append(b.calls, "button")
	return nil
}
func (b *fakeInputBackend) Scroll(dx, dy int32) error { return nil }
func (b *fakeInputBackend) Key(down bool, code uint32) error {
	b.calls = append(b.calls, "key")
	return nil
}
func (b *fakeInputBackend) InputText(text string) error { return nil }
func (b *fakeInputBackend) CursorPosition() (int32, int32, error) {
	return 0, 0, nil
}
func (b *fakeInputBackend) ScreenSize() (int32, int32, error) { return 1920, 1080, nil }

func testCollaborators(t *testing.T) (*Collaborators, *fakeInputBackend) {
	t.Helper()
	backend := &fakeInputBackend{}
	return &Collaborators{
		Capturer:      capture.New(fakeGrabber{}),
		Injector:      input.New(backend, true),
		Clipboard:     clipboard.New(clipboard.NewStubBackend(), true),
		Authenticator: auth.NewStaticTokenAuthenticator("secret-token"),
		SysInfo:       sysinfo.New(nil),
		FileTransfer:  filetransfer.New(filetransfer.Config{ReceiveDir: t.TempDir()}),
		Arbiter:       NewControlArbiter(ControlPolicyAny),
	}, backend
}

func authCmd() wireproto.Command {
	return wireproto.Command{Authenticate: &wireproto.AuthenticatePayload{Username: "viewer", PasswordHash: "secret-token"}}
}

// TestUnauthenticatedCommandIsRejected verifies the auth gate: any
// command other than Authenticate, before authentication succeeds, is
// answered with Error{401} and does not touch the collaborators.
func TestUnauthenticatedCommandIsRejected(t *testing.T) {
	collab, _ := testCollaborators(t)
	conn := newFakeConn(wireproto.Command{RequestSystemInfo: &struct{}{}})
	cfg := DefaultConfig()
	s := New(conn, cfg, collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	waitDone(t, s)

	resp := onlyResponse(t, conn)
	if resp.Kind() != wireproto.RespKindError || resp.Error.Code != 401 {
		t.Fatalf("expected Error{401}, got %+v", resp)
	}
}

// TestAuthenticateThenScreenshotSucceeds covers scenario 1/2: a
// successful Authenticate transitions the session, and the first
// RequestScreenshot afterward returns a full-frame ScreenshotData.
func TestAuthenticateThenScreenshotSucceeds(t *testing.T) {
	collab, _ := testCollaborators(t)
	conn := newFakeConn(authCmd(), wireproto.Command{RequestScreenshot: &wireproto.RequestScreenshotPayload{}})
	s := New(conn, DefaultConfig(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitForResponses(t, conn, 2)
	cancel()
	<-s.Done()

	resps := conn.responses()
	if resps[0].Kind() != wireproto.RespKindAuthResult || !resps[0].AuthResult.Success {
		t.Fatalf("expected successful AuthResult, got %+v", resps[0])
	}
	if resps[1].Kind() != wireproto.RespKindScreenshotData {
		t.Fatalf("expected ScreenshotData, got %+v", resps[1])
	}
	if len(resps[1].ScreenshotData.Data) == 0 {
		t.Fatal("expected non-empty encoded image data")
	}
}

// TestAuthenticateWrongCredentialsFails ensures a bad token produces a
// failed AuthResult without authenticating the session.
func TestAuthenticateWrongCredentialsFails(t *testing.T) {
	collab, _ := testCollaborators(t)
	conn := newFakeConn(wireproto.Command{Authenticate: &wireproto.AuthenticatePayload{Username: "viewer", PasswordHash: "wrong"}})
	s := New(conn, DefaultConfig(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitDone(t, s)

	resp := onlyResponse(t, conn)
	if resp.Kind() != wireproto.RespKindAuthResult || resp.AuthResult.Success {
		t.Fatalf("expected failed AuthResult, got %+v", resp)
	}
}

// TestSecondScreenshotWithNoChangeReusesCache covers scenario 3: a
// second RequestScreenshot with an unchanged frame does not re-encode,
// and still returns a ScreenshotData payload with non-empty data.
func TestSecondScreenshotWithNoChangeReusesCache(t *testing.T) {
	collab, _ := testCollaborators(t)
	conn := newFakeConn(
		authCmd(),
		wireproto.Command{RequestScreenshot: &wireproto.RequestScreenshotPayload{}},
		wireproto.Command{RequestScreenshot: &wireproto.RequestScreenshotPayload{}},
	)
	s := New(conn, DefaultConfig(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitForResponses(t, conn, 3)
	cancel()
	<-s.Done()

	resps := conn.responses()
	first := resps[1].ScreenshotData
	second := resps[2].ScreenshotData
	if first == nil || second == nil {
		t.Fatalf("expected two ScreenshotData responses, got %+v", resps)
	}
	if string(first.Data) != string(second.Data) {
		t.Fatalf("expected identical cached encode, got different data")
	}
}

// TestMouseMoveIsSilentAndInjected verifies MouseMove reaches the
// injector but produces no response on the wire.
func TestMouseMoveIsSilentAndInjected(t *testing.T) {
	collab, backend := testCollaborators(t)
	conn := newFakeConn(authCmd(), wireproto.Command{MouseMove: &wireproto.MouseMovePayload{X: 1, Y: 2}})
	s := New(conn, DefaultConfig(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitForResponses(t, conn, 1)
	cancel()
	<-s.Done()

	if len(backend.calls) != 1 || backend.calls[0] != "moveAbs" {
		t.Fatalf("expected one moveAbs call, got %v", backend.calls)
	}
	if n := len(conn.responses()); n != 1 {
		t.Fatalf("expected only the AuthResult response, got %d responses", n)
	}
}

// TestPingReturnsPongWithEchoedTimestamp covers scenario 4.
func TestPingReturnsPongWithEchoedTimestamp(t *testing.T) {
	collab, _ := testCollaborators(t)
	conn := newFakeConn(authCmd(), wireproto.Command{Ping: &wireproto.PingPayload{Timestamp: 12345}})
	s := New(conn, DefaultConfig(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitForResponses(t, conn, 2)
	cancel()
	<-s.Done()

	resp := conn.responses()[1]
	if resp.Kind() != wireproto.RespKindPong || resp.Pong.OriginalTimestamp != 12345 {
		t.Fatalf("expected Pong echoing timestamp, got %+v", resp)
	}
}

// TestThreeConsecutiveProtocolErrorsEvict covers the three-strike
// eviction rule: three protocol errors in a row end the session.
func TestThreeConsecutiveProtocolErrorsEvict(t *testing.T) {
	collab, _ := testCollaborators(t)
	conn := newFakeConn(authCmd())
	conn.inboxErr = []error{nil,
		&transport.ErrProtocol{Cause: errors.New("bad frame")},
		&transport.ErrProtocol{Cause: errors.New("bad frame")},
		&transport.ErrProtocol{Cause: errors.New("bad frame")},
	}
	s := New(conn, DefaultConfig(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitDone(t, s)

	resps := conn.responses()
	// AuthResult + three Error{400} responses before eviction.
	if len(resps) != 4 {
		t.Fatalf("expected 4 responses (auth + 3 protocol errors), got %d", len(resps))
	}
	for _, r := range resps[1:] {
		if r.Kind() != wireproto.RespKindError || r.Error.Code != 400 {
			t.Fatalf("expected Error{400}, got %+v", r)
		}
	}
}

// TestDisconnectEndsSessionAndReportsNotConnected covers the Disconnect
// command's ConnectionStatus{connected:false} contract.
func TestDisconnectEndsSessionAndReportsNotConnected(t *testing.T) {
	collab, _ := testCollaborators(t)
	conn := newFakeConn(authCmd(), wireproto.Command{Disconnect: &struct{}{}})
	s := New(conn, DefaultConfig(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitDone(t, s)

	resp := conn.responses()[1]
	if resp.Kind() != wireproto.RespKindConnectionStatus || resp.ConnectionStatus.Connected {
		t.Fatalf("expected ConnectionStatus{connected:false}, got %+v", resp)
	}
	if s.IsActive() {
		t.Fatal("expected session to be inactive after Disconnect")
	}
}

// TestRunApplicationDeniedByDefault covers the default-off policy.
func TestRunApplicationDeniedByDefault(t *testing.T) {
	collab, _ := testCollaborators(t)
	conn := newFakeConn(authCmd(), wireproto.Command{RunApplication: &wireproto.RunApplicationPayload{Path: "/bin/true"}})
	s := New(conn, DefaultConfig(), collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitForResponses(t, conn, 2)
	cancel()
	<-s.Done()

	resp := conn.responses()[1]
	if resp.Kind() != wireproto.RespKindError || resp.Error.Code != 403 {
		t.Fatalf("expected Error{403}, got %+v", resp)
	}
}

// TestControlArbiterSingleWriterBlocksSecondSession verifies that under
// single-writer policy the arbiter denies a session other than the
// holder, and grants control to it once the holder releases.
func TestControlArbiterSingleWriterBlocksSecondSession(t *testing.T) {
	arbiter := NewControlArbiter(ControlPolicySingleWriter)
	if !arbiter.Allow("session-a") {
		t.Fatal("expected first claimant to be allowed")
	}
	if arbiter.Allow("session-b") {
		t.Fatal("expected second session to be denied control")
	}
	arbiter.Release("session-a")
	if !arbiter.Allow("session-b") {
		t.Fatal("expected control to be available after release")
	}
}

func waitForResponses(t *testing.T, conn *fakeConn, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(conn.responses()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d responses, got %d", n, len(conn.responses()))
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to finish")
	}
}

func onlyResponse(t *testing.T, conn *fakeConn) wireproto.Response {
	t.Helper()
	waitForResponses(t, conn, 1)
	resps := conn.responses()
	if len(resps) != 1 {
		t.Fatalf("expected exactly 1 response, got %d", len(resps))
	}
	return resps[0]
}
