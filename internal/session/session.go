// Package session implements the per-connection state machine and
// dispatch loop that sits between a transport Connection and the
// capture/diff/encode/input/clipboard/sysinfo/filetransfer
// collaborators.
package session

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/remote-desktop/internal/diff"
	"github.com/breeze-rmm/remote-desktop/internal/encode"
	"github.com/breeze-rmm/remote-desktop/internal/logging"
	"github.com/breeze-rmm/remote-desktop/internal/transport"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
)

// unauthenticatedMessage is returned for any command other than
// Authenticate while a session has not yet passed the auth gate.
const unauthenticatedMessage = "認証が必要です"

// State names the session's position in the Handshake -> Authenticated
// -> Closing machine. The source's "Authenticating" state collapses
// into Handshake here: Authenticate is a single synchronous lookup, not
// a multi-round-trip exchange, so a distinct in-between state would
// never be observable (see DESIGN.md).
type State string

const (
	StateHandshake     State = "Handshake"
	StateAuthenticated State = "Authenticated"
	StateClosing       State = "Closing"
)

var errLog = logging.L("session")

// screenshotCache remembers the last encoded frame for a session so an
// unchanged screen (ChangeRatio == 0) can be served again without
// re-encoding, provided the request's quality/size parameters match.
type screenshotCache struct {
	image     *encode.EncodedImage
	quality   uint8
	format    wireproto.ImageFormat
	maxWidth  int
	maxHeight int
}

// Session is one authenticated (or authenticating) connection's state
// and dispatch loop. A Session owns no platform resources directly; it
// drives the shared Collaborators under policy from Config.
type Session struct {
	id     string
	conn   transport.Connection
	cfg    Config
	collab *Collaborators
	log    *slog.Logger

	mu                    sync.Mutex
	state                 State
	authenticated         bool
	createdAt             time.Time
	lastActivity          time.Time
	bytesSent             uint64
	bytesReceived         uint64
	quality               uint8
	imageFormat           wireproto.ImageFormat
	imageFormatOverridden bool
	fps                   uint8
	monitorIndex          uint
	lastRTT               *time.Duration
	active                bool
	lastResponseSent      time.Time
	protocolErrors        int
	cache                 *screenshotCache

	differ *diff.Differ

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Session wrapping conn. The session is not started until
// Start is called.
func New(conn transport.Connection, cfg Config, collab *Collaborators) *Session {
	now := time.Now()
	return &Session{
		id:               uuid.NewString(),
		conn:             conn,
		cfg:              cfg,
		collab:           collab,
		log:              errLog,
		state:            StateHandshake,
		createdAt:        now,
		lastActivity:     now,
		quality:          cfg.DefaultQuality,
		imageFormat:      cfg.DefaultImageFormat,
		fps:              15,
		monitorIndex:     cfg.DefaultMonitor,
		active:           true,
		lastResponseSent: now,
		differ:           diff.New(diff.DefaultConfig()),
		done:             make(chan struct{}),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// RemoteAddr returns the underlying connection's peer address.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr() }

// Done is closed once the session's loop has fully exited and its
// resources are released.
func (s *Session) Done() <-chan struct{} { return s.done }

// IdleTime reports how long it has been since the last command was
// dispatched on this session.
func (s *Session) IdleTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// IsActive reports whether the session's loop is still running.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Snapshot is a read-only copy of a session's bookkeeping state, used by
// Server.Snapshots to report every live session.
type Snapshot struct {
	ID            string
	RemoteAddr    string
	State         State
	Authenticated bool
	CreatedAt     time.Time
	LastActivity  time.Time
	BytesSent     uint64
	BytesReceived uint64
	Quality       uint8
	LastRTT       *time.Duration
	Active        bool
}

// Snapshot reports the session's current bookkeeping state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:            s.id,
		RemoteAddr:    s.conn.RemoteAddr(),
		State:         s.state,
		Authenticated: s.authenticated,
		CreatedAt:     s.createdAt,
		LastActivity:  s.lastActivity,
		BytesSent:     s.bytesSent,
		BytesReceived: s.bytesReceived,
		Quality:       s.quality,
		LastRTT:       s.lastRTT,
		Active:        s.active,
	}
}

// Start runs the session's dispatch loop and keep-alive ticker in a new
// goroutine, returning immediately. Callers observe completion via Done.
func (s *Session) Start(ctx context.Context) {
	go s.run(ctx)
}

// Close forces the underlying connection closed, unblocking a pending
// Receive so the dispatch loop can exit. Used by the server's idle
// eviction sweep.
func (s *Session) Close() error {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	return s.conn.Close()
}

func (s *Session) run(ctx context.Context) {
	defer s.teardown()

	keepAliveDone := make(chan struct{})
	go s.keepAliveLoop(keepAliveDone)
	defer close(keepAliveDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.conn.SetTimeout(s.cfg.ClientTimeout)
		cmd, err := s.conn.Receive()
		if err != nil {
			if s.handleReceiveError(err) {
				continue
			}
			return
		}

		s.touchActivity()
		s.resetProtocolErrors()

		resp, ok := s.dispatch(cmd)
		if ok {
			if err := s.send(resp); err != nil {
				s.log.Debug("send failed, ending session", "session", s.id, "error", err)
				return
			}
		}

		if !s.IsActive() {
			return
		}
	}
}

// handleReceiveError classifies a failed Receive. It reports true when
// the loop should continue (a Protocol error under the strike limit),
// false when the session should end.
func (s *Session) handleReceiveError(err error) bool {
	var protoErr *transport.ErrProtocol
	if errors.As(err, &protoErr) {
		s.mu.Lock()
		s.protocolErrors++
		strikes := s.protocolErrors
		s.mu.Unlock()

		s.send(wireproto.ErrorResponse(400, "malformed request"))

		if strikes >= s.cfg.MaxProtocolErrors {
			s.log.Warn("evicting session after repeated protocol errors", "session", s.id, "strikes", strikes)
			return false
		}
		return true
	}

	// Io, Timeout, and ErrClosed all end the session: a Timeout here
	// means no command arrived within client_timeout, which is itself
	// the idle-eviction condition for the read side.
	s.log.Debug("session receive ended", "session", s.id, "error", err)
	return false
}

func (s *Session) resetProtocolErrors() {
	s.mu.Lock()
	s.protocolErrors = 0
	s.mu.Unlock()
}

func (s *Session) touchActivity() {
	s.mu.Lock()
	now := time.Now()
	if now.After(s.lastActivity) {
		s.lastActivity = now
	}
	s.mu.Unlock()
}

func (s *Session) send(resp wireproto.Response) error {
	if err := s.conn.Send(resp); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastResponseSent = time.Now()
	s.mu.Unlock()
	return nil
}

// keepAliveLoop emits an unsolicited Pong whenever the session has gone
// keep_alive_interval without sending any response, independent of the
// blocking Receive call in run. A ticker at half the interval bounds how
// late the check can fire.
func (s *Session) keepAliveLoop(done <-chan struct{}) {
	interval := s.cfg.KeepAliveInterval
	if interval <= 0 {
		return
	}
	tickEvery := interval / 2
	if tickEvery <= 0 {
		tickEvery = interval
	}
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastResponseSent)
			alive := s.active
			s.mu.Unlock()
			if !alive {
				return
			}
			if idle >= interval {
				s.sendKeepAlive()
			}
		}
	}
}

func (s *Session) sendKeepAlive() {
	pong := wireproto.Response{Pong: &wireproto.PongPayload{ServerTime: uint64(time.Now().UnixMilli())}}
	if err := s.send(pong); err != nil {
		s.log.Debug("keep-alive send failed", "session", s.id, "error", err)
	}
}

func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		s.state = StateClosing
		s.mu.Unlock()

		s.conn.Close()
		if s.collab.Arbiter != nil {
			s.collab.Arbiter.Release(s.id)
		}
		s.log.Info("session closed", "session", s.id, "remote", s.RemoteAddr())
		close(s.done)
	})
}

// runApplication executes a RunApplication command under a bounded
// timeout. The process is detached; the session does not wait for exit
// or collect output, since the wire protocol has no streaming result
// command for it.
func runApplication(p *wireproto.RunApplicationPayload, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	cmd := exec.CommandContext(ctx, p.Path, p.Args...)
	if err := cmd.Start(); err != nil {
		cancel()
		return err
	}
	go func() {
		cmd.Wait()
		cancel()
	}()
	return nil
}
