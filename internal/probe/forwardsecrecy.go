package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/securemon/internal/domain"
	"github.com/hamed0406/securemon/internal/repo"
)

// ForwardSecrecySuites are the TLS 1.2 suites offered. Static RSA key exchange
// is never offered, so a server that only speaks it fails the handshake.
// crypto/tls implements no finite-field DHE suites, so a server whose only
// forward-secret suites are DHE is recorded as StatusDisabled too.
// TLS 1.3 suites are not configurable and are always forward-secret.
var ForwardSecrecySuites = []uint16{
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256,
}

// ForwardSecrecyProbe attempts a TLS handshake offering only forward-secret
// suites.
type ForwardSecrecyProbe struct {
	Logger   *zap.Logger
	Store    repo.ForwardSecrecyWriter
	Hostname string
	Port     int
	Timeout  time.Duration

	// TLS12Only caps the handshake at TLS 1.2 so only the suite list above
	// decides. TLS 1.3-only servers then record StatusDisabled.
	TLS12Only bool

	// RootCAs overrides the system pool (tests).
	RootCAs *x509.CertPool
}

func NewForwardSecrecyProbe(logger *zap.Logger, store repo.ForwardSecrecyWriter, hostname string, port int, timeout time.Duration) *ForwardSecrecyProbe {
	if port <= 0 {
		port = 443
	}
	return &ForwardSecrecyProbe{
		Logger:   logger,
		Store:    store,
		Hostname: hostname,
		Port:     port,
		Timeout:  timeout,
	}
}

func (p *ForwardSecrecyProbe) Name() string { return "forward_secrecy" }

func (p *ForwardSecrecyProbe) RunOnce(ctx context.Context) {
	rec := p.Check(ctx)
	if ctx.Err() != nil {
		return
	}
	if err := p.Store.AppendForwardSecrecy(ctx, &rec); err != nil {
		p.Logger.Warn("forward_secrecy_append_error", zap.String("hostname", p.Hostname), zap.Error(err))
	}
}

func (p *ForwardSecrecyProbe) tlsConfig() *tls.Config {
	cfg := &tls.Config{
		ServerName:   p.Hostname,
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CipherSuites: ForwardSecrecySuites,
		RootCAs:      p.RootCAs,
	}
	if p.TLS12Only {
		cfg.MaxVersion = tls.VersionTLS12
	}
	return cfg
}

// Check dials and handshakes once. Negotiation failures (alerts, certificate
// problems) are StatusDisabled; anything wrong with the connection itself is
// StatusError.
func (p *ForwardSecrecyProbe) Check(ctx context.Context) domain.ForwardSecrecyRecord {
	rec := domain.ForwardSecrecyRecord{Hostname: p.Hostname}
	addr := net.JoinHostPort(p.Hostname, strconv.Itoa(p.Port))

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	d := net.Dialer{Timeout: p.Timeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return p.fail(rec, domain.StatusError, fmt.Errorf("dial %s: %w", addr, err))
	}
	defer raw.Close()

	conn := tls.Client(raw, p.tlsConfig())
	defer conn.Close()

	if err := conn.HandshakeContext(ctx); err != nil {
		if isTransportFailure(err) {
			return p.fail(rec, domain.StatusError, err)
		}
		return p.fail(rec, domain.StatusDisabled, err)
	}

	st := conn.ConnectionState()
	rec.Status = domain.StatusEnabled
	p.Logger.Debug("forward_secrecy_checked",
		zap.String("hostname", p.Hostname),
		zap.String("version", tls.VersionName(st.Version)),
		zap.String("cipher", tls.CipherSuiteName(st.CipherSuite)),
	)
	return rec
}

func (p *ForwardSecrecyProbe) fail(rec domain.ForwardSecrecyRecord, st domain.Status, err error) domain.ForwardSecrecyRecord {
	rec.Status = st
	rec.ErrorMessage = domain.StringPtr(err.Error())
	p.Logger.Info("forward_secrecy_failed",
		zap.String("hostname", p.Hostname),
		zap.String("status", string(st)),
		zap.String("error_class", errorClass(err)),
		zap.Error(err),
	)
	return rec
}
