package client

import (
	"crypto/tls"
	"time"
)

// Config holds the viewer-side connection settings for a Client.
type Config struct {
	ServerAddr     string
	Transport      string // "tcp", "tls", or "websocket"
	ConnectTimeout time.Duration
	TLSConfig      *tls.Config

	Username     string
	PasswordHash string

	PingInterval time.Duration
	PollInterval time.Duration
	Quality      uint8
	ImageFormat  string
}

// DefaultConfig returns conservative defaults matching
// internal/config.DefaultClientConfig's connect/poll timings.
func DefaultConfig() Config {
	return Config{
		Transport:      "tcp",
		ConnectTimeout: 5 * time.Second,
		PingInterval:   1 * time.Second,
		PollInterval:   33 * time.Millisecond,
		Quality:        75,
		ImageFormat:    "jpeg",
	}
}
