package session

import "sync"

// ControlArbiter gates which session may currently drive the shared
// Injector, per a configurable policy. The default and baseline is
// ControlPolicyAny: every authenticated session may inject input,
// first-come-first-served at the OS level.
type ControlArbiter struct {
	policy ControlPolicy

	mu     sync.Mutex
	holder string
}

// NewControlArbiter creates an arbiter enforcing policy.
func NewControlArbiter(policy ControlPolicy) *ControlArbiter {
	return &ControlArbiter{policy: policy}
}

// Allow reports whether sessionID may currently drive the injector,
// claiming the control token on first use under single-writer and
// explicit-grant. explicit-grant is implemented identically to
// single-writer: the wire protocol defines no request/grant/release
// command, so there is no channel through which a grant could be
// communicated (see DESIGN.md).
func (a *ControlArbiter) Allow(sessionID string) bool {
	if a.policy == ControlPolicyAny {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holder == "" {
		a.holder = sessionID
	}
	return a.holder == sessionID
}

// Release frees the control token if sessionID currently holds it,
// called when a session disconnects so a later session can acquire it.
func (a *ControlArbiter) Release(sessionID string) {
	if a.policy == ControlPolicyAny {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holder == sessionID {
		a.holder = ""
	}
}

// Holder reports the session id currently holding control, or "" under
// ControlPolicyAny or when nobody has claimed it yet.
func (a *ControlArbiter) Holder() string {
	if a.policy == ControlPolicyAny {
		return ""
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder
}
