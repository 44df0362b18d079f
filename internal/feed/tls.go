package feed

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// TLSConfig configures the feed session's TLS posture (spec §4.2).
// Grounded on stdlib crypto/tls: no third-party TLS library appears
// anywhere in the example pack, so this is stdlib by necessity.
type TLSConfig struct {
	CAFile   string // empty uses system defaults
	CertFile string // optional client cert
	KeyFile  string // optional client key, required if CertFile is set

	InsecureSkipHostnameVerify bool
	RequireKeyUsage            bool // verify signature/key-agreement key-usage bits post-handshake
}

// allowedCipherSuites is the ECDHE+AESGCM / ECDHE+CHACHA20 / DHE-only
// allow-list spec §4.2 requires.
var allowedCipherSuites = []uint16{
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
}

func buildTLSConfig(cfg *TLSConfig, serverName string) (*tls.Config, error) {
	tc := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		CipherSuites:       allowedCipherSuites,
		ServerName:         serverName,
		InsecureSkipVerify: cfg.InsecureSkipHostnameVerify,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("feed: read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("feed: no certificates parsed from CA bundle")
		}
		tc.RootCAs = pool
	}

	if cfg.CertFile != "" {
		if cfg.KeyFile == "" {
			return nil, errors.New("feed: client certificate configured without a matching key file")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("feed: load client cert/key: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	return tc, nil
}

// handshake wraps conn in a TLS client connection, performs the
// handshake, and verifies the post-handshake invariants spec §4.2
// requires: chain verification (already enforced by crypto/tls unless
// InsecureSkipHostnameVerify is set), validity period, and optional
// key-usage bits.
func handshake(ctx context.Context, conn net.Conn, cfg *TLSConfig, host string) (net.Conn, error) {
	tc, err := buildTLSConfig(cfg, host)
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Client(conn, tc)
	deadline, ok := ctx.Deadline()
	if ok {
		_ = tlsConn.SetDeadline(deadline)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("feed: tls handshake: %w", err)
	}
	_ = tlsConn.SetDeadline(time.Time{})

	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.New("feed: no peer certificate presented")
	}
	leaf := state.PeerCertificates[0]

	now := time.Now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return nil, fmt.Errorf("feed: peer certificate outside validity period (not_before=%s not_after=%s)", leaf.NotBefore, leaf.NotAfter)
	}

	if cfg.RequireKeyUsage {
		hasUsage := leaf.KeyUsage&x509.KeyUsageDigitalSignature != 0 || leaf.KeyUsage&x509.KeyUsageKeyAgreement != 0
		if !hasUsage {
			return nil, errors.New("feed: peer certificate missing signature/key-agreement key usage")
		}
	}

	return tlsConn, nil
}
