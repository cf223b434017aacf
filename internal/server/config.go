package server

import (
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/session"
)

// Config parameterizes the supervisor: its listening socket, admission
// policy, and idle-eviction cadence, plus the session policy shared by
// every connection it accepts.
type Config struct {
	BindAddr string
	Port     int

	TLSEnabled  bool
	TLSCertPath string
	TLSKeyPath  string

	MaxConnections int

	// IdleSweepInterval bounds how often the eviction sweep runs. The
	// source requires this at ≤30s; DefaultConfig uses 10s headroom.
	IdleSweepInterval time.Duration

	// AcceptDrainTimeout bounds how long Shutdown waits for in-flight
	// session tasks to finish before the worker pool is cancelled.
	AcceptDrainTimeout time.Duration

	Session session.Config
}

// DefaultConfig returns a supervisor configuration with a conservative
// connection cap and an eviction sweep well under the source's 30s
// ceiling.
func DefaultConfig() Config {
	return Config{
		BindAddr:           "0.0.0.0",
		Port:               5900,
		MaxConnections:     10,
		IdleSweepInterval:  10 * time.Second,
		AcceptDrainTimeout: 5 * time.Second,
		Session:            session.DefaultConfig(),
	}
}
