// Package tlsutil generates the ephemeral self-signed certificate used
// by the TLS transport adapter when no operator-supplied certificate is
// configured.
package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/breeze-rmm/remote-desktop/internal/logging"
)

var tlsLog = logging.L("tlsutil")

// Certificate bundles a loaded *tls.Certificate with its SHA-256
// fingerprint for operator verification.
type Certificate struct {
	TLSCertificate    tls.Certificate
	FingerprintSHA256 string
}

// GenerateSelfSigned creates an ephemeral ECDSA P-256 certificate valid
// for validity, with SANs for localhost, loopback, and every
// non-loopback interface IP so the certificate also works for LAN
// clients connecting by address.
func GenerateSelfSigned(validity time.Duration) (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: generate key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("tlsutil: generate serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serialNumber,
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
				tmpl.IPAddresses = append(tmpl.IPAddresses, ipNet.IP)
			}
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: marshal key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: load key pair: %w", err)
	}

	fp := sha256.Sum256(certDER)
	fingerprint := fmt.Sprintf("%X", fp)
	tlsLog.Info("generated self-signed certificate", "fingerprint_sha256", fingerprint, "not_after", tmpl.NotAfter)

	return &Certificate{TLSCertificate: tlsCert, FingerprintSHA256: fingerprint}, nil
}

// ServerConfig wraps a Certificate in a *tls.Config ready for use by the
// TLS transport listener.
func (c *Certificate) ServerConfig() *tls.Config {
	return &tls.Config{Certificates: []tls.Certificate{c.TLSCertificate}}
}
