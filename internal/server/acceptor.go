package server

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/breeze-rmm/remote-desktop/internal/transport"
)

// Acceptor is the listening side of a transport variant. The supervisor
// is transport-agnostic: it only needs something that blocks until a
// peer arrives and hands back a ready Connection. WebSocket and WebRTC
// peers arrive via HTTP upgrade / SDP signaling instead of a bare
// listener and are handed to Server.Adopt directly by the HTTP/signaling
// layer, bypassing Acceptor entirely.
type Acceptor interface {
	Accept() (transport.Connection, error)
	Close() error
	Addr() string
}

type tcpAcceptor struct {
	ln net.Listener
}

// NewTCPAcceptor binds a plain TCP listener at bindAddr:port.
func NewTCPAcceptor(bindAddr string, port int) (Acceptor, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", bindAddr, port))
	if err != nil {
		return nil, err
	}
	return &tcpAcceptor{ln: ln}, nil
}

// NewTLSAcceptor binds a TLS listener at bindAddr:port. A failed TLS
// handshake on an accepted socket is the caller's concern (Server logs
// and closes it silently per the source's rule); Accept itself only
// returns errors from the underlying listener.
func NewTLSAcceptor(bindAddr string, port int, tlsCfg *tls.Config) (Acceptor, error) {
	ln, err := tls.Listen("tcp", fmt.Sprintf("%s:%d", bindAddr, port), tlsCfg)
	if err != nil {
		return nil, err
	}
	return &tcpAcceptor{ln: ln}, nil
}

func (a *tcpAcceptor) Accept() (transport.Connection, error) {
	conn, err := a.ln.Accept()
	if err != nil {
		return nil, err
	}
	return transport.NewTCPConnection(conn), nil
}

func (a *tcpAcceptor) Close() error { return a.ln.Close() }
func (a *tcpAcceptor) Addr() string { return a.ln.Addr().String() }
