package server

import (
	"sync"

	"github.com/breeze-rmm/remote-desktop/internal/session"
)

// registry tracks live sessions, grounded on the source's
// WsSessionManager: a mutex-guarded map keyed by session ID, with the
// same add/remove/count/list shape.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session.Session)}
}

func (r *registry) add(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// count returns the number of live sessions, used by admission control.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// list returns a snapshot slice of the currently tracked sessions, safe
// to range over after the lock is released.
func (r *registry) list() []*session.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// closeAll force-closes every tracked session, unblocking their
// dispatch loops so Server.Shutdown can wait for them to exit.
func (r *registry) closeAll() {
	for _, s := range r.list() {
		s.Close()
	}
}
