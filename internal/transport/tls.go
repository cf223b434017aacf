package transport

import (
	"crypto/tls"
	"net"
)

// NewTLSConnection wraps a TLS-terminated net.Conn (already upgraded by
// tls.Server or tls.Client) in the Connection contract. Identity comes
// from either an operator-supplied certificate or
// internal/tlsutil.GenerateSelfSigned.
func NewTLSConnection(conn *tls.Conn) Connection {
	return NewTCPConnection(conn)
}

// ListenTLS starts a TLS listener on addr using cfg, accepting stream
// connections framed identically to plain TCP.
func ListenTLS(addr string, cfg *tls.Config) (net.Listener, error) {
	return tls.Listen("tcp", addr, cfg)
}

// DialTLS connects to addr and returns a framed Connection over TLS.
func DialTLS(addr string, cfg *tls.Config) (Connection, error) {
	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, wrapIo(err)
	}
	return NewTCPConnection(conn), nil
}
