// Package server implements the server supervisor: the listening
// socket, admission control, session registry, and idle-eviction sweep
// that sit above the per-connection session engine.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/logging"
	"github.com/breeze-rmm/remote-desktop/internal/session"
	"github.com/breeze-rmm/remote-desktop/internal/transport"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
	"github.com/breeze-rmm/remote-desktop/internal/workerpool"
)

var log = logging.L("server")

// Server owns a listening socket and admits connections into per-session
// tasks run on a bounded worker pool, sized by cfg.MaxConnections.
// Exactly one Server owns the shared Collaborators passed to it; every
// session it spawns borrows those collaborators under their own
// mutual-exclusion.
type Server struct {
	cfg      Config
	acceptor Acceptor
	collab   *session.Collaborators
	pool     *workerpool.Pool
	reg      *registry

	mu      sync.Mutex
	running bool
	stopped chan struct{}
}

// New wraps an already-bound Acceptor in a Server. Acceptor construction
// is left to the caller (NewTCPAcceptor / NewTLSAcceptor / an HTTP
// upgrade handler feeding Adopt) so Server stays transport-agnostic.
func New(cfg Config, acceptor Acceptor, collab *session.Collaborators) *Server {
	if cfg.MaxConnections < 1 {
		cfg.MaxConnections = 1
	}
	return &Server{
		cfg:      cfg,
		acceptor: acceptor,
		collab:   collab,
		pool:     workerpool.New(cfg.MaxConnections, cfg.MaxConnections*2),
		reg:      newRegistry(),
		stopped:  make(chan struct{}),
	}
}

// Addr returns the supervisor's bound listening address.
func (s *Server) Addr() string { return s.acceptor.Addr() }

// ActiveCount returns the number of live sessions.
func (s *Server) ActiveCount() int { return s.reg.count() }

// Snapshots returns the bookkeeping state of every live session.
func (s *Server) Snapshots() []session.Snapshot {
	sessions := s.reg.list()
	out := make([]session.Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Snapshot())
	}
	return out
}

// Run accepts connections until ctx is cancelled or Shutdown is called.
// One cooperative task is spawned per accepted connection (via the
// worker pool); a second task runs the idle-eviction sweep. Run blocks
// until both have exited.
func (s *Server) Run(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	// Unblock a pending Accept when ctx is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			s.acceptor.Close()
		case <-s.stopped:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.acceptLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.idleSweepLoop(ctx)
	}()
	wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.acceptor.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				return
			default:
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Warn("accept error", "error", err)
			continue
		}
		s.Adopt(ctx, conn)
	}
}

// Adopt admits an already-established Connection into the supervisor,
// applying admission control before constructing a session. WebSocket
// upgrade handlers and WebRTC data-channel acceptors call this directly,
// bypassing the Acceptor/acceptLoop path entirely.
func (s *Server) Adopt(ctx context.Context, conn transport.Connection) {
	if s.reg.count() >= s.cfg.MaxConnections {
		log.Info("rejecting connection, at capacity", "remote", conn.RemoteAddr(), "max", s.cfg.MaxConnections)
		conn.Send(wireproto.ErrorResponse(503, "server is at capacity"))
		conn.Close()
		return
	}

	accepted := s.pool.Submit(func() {
		s.serve(ctx, conn)
	})
	if !accepted {
		log.Warn("worker pool saturated, rejecting connection", "remote", conn.RemoteAddr())
		conn.Close()
	}
}

func (s *Server) serve(ctx context.Context, conn transport.Connection) {
	sess := session.New(conn, s.cfg.Session, s.collab)
	s.reg.add(sess)
	defer s.reg.remove(sess.ID())

	sess.Start(ctx)
	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.Close()
		<-sess.Done()
	}
}

// idleSweepLoop removes sessions whose idle time has reached the
// session's configured client timeout, per the source's ≤30s scan
// requirement.
func (s *Server) idleSweepLoop(ctx context.Context) {
	interval := s.cfg.IdleSweepInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopped:
			return
		case <-ticker.C:
			s.sweepIdle()
		}
	}
}

func (s *Server) sweepIdle() {
	timeout := s.cfg.Session.ClientTimeout
	if timeout <= 0 {
		return
	}
	for _, sess := range s.reg.list() {
		if sess.IdleTime() >= timeout {
			log.Info("evicting idle session", "session", sess.ID(), "idle", sess.IdleTime())
			sess.Close()
		}
	}
}

// Shutdown stops accepting new connections, force-closes every live
// session so its dispatch loop observes the transport close and exits,
// then drains the worker pool, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	select {
	case <-s.stopped:
		s.mu.Unlock()
		return
	default:
	}
	s.running = false
	close(s.stopped)
	s.mu.Unlock()

	s.acceptor.Close()
	s.reg.closeAll()
	s.pool.Shutdown(ctx)
}
