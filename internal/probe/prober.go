package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"certwatch/internal/logger"
	"certwatch/pkg/models"
)

// DefaultTimeout bounds each network step of a probe when the request does
// not carry its own timeout.
const DefaultTimeout = 3 * time.Second

// Request describes one probe attempt.
type Request struct {
	// Host is resolved and dialled. It may be a hostname or an IP literal.
	Host string
	// ServerName is sent as SNI. Defaults to Host.
	ServerName string
	Port       uint16
	// Timeout applies separately to resolution, connect and handshake.
	Timeout time.Duration
	// At is the instant remaining validity is measured from. Zero means now.
	At time.Time
}

// Prober reads the leaf certificate of a TLS endpoint.
type Prober struct {
	resolver Resolver
}

func NewProber(resolver Resolver) *Prober {
	if resolver == nil {
		resolver = NewSystemResolver()
	}
	return &Prober{resolver: resolver}
}

// Probe connects to req.Host, completes a TLS handshake without verifying
// the peer and measures how long the presented leaf certificate remains
// valid. Failures are returned as *Error.
func (p *Prober) Probe(ctx context.Context, req Request) (models.CertificateExpiry, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	serverName := req.ServerName
	if serverName == "" {
		serverName = req.Host
	}

	// Scoped to this handshake only; the chain is read, not trusted.
	config := &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: true,
	}

	resolveCtx, cancel := context.WithTimeout(ctx, timeout)
	ips, err := p.resolver.Resolve(resolveCtx, req.Host)
	cancel()
	if err != nil {
		return models.CertificateExpiry{}, newError(ErrResolution, req.Host, err)
	}
	if len(ips) == 0 {
		return models.CertificateExpiry{}, newError(ErrResolution, req.Host, fmt.Errorf("no IP addresses found"))
	}

	addr := net.JoinHostPort(ips[0].String(), strconv.Itoa(int(req.Port)))

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return models.CertificateExpiry{}, newError(ErrConnect, req.Host, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return models.CertificateExpiry{}, newError(ErrConnect, req.Host, err)
	}

	tlsConn := tls.Client(conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return models.CertificateExpiry{}, newError(ErrHandshake, req.Host, err)
	}

	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return models.CertificateExpiry{}, newError(ErrCertificateMissing, req.Host, nil)
	}

	leaf := state.PeerCertificates[0]

	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	expiry := models.NewCertificateExpiry(at, leaf.NotAfter)
	expiry.Subject = leaf.Subject.CommonName
	expiry.Issuer = leaf.Issuer.CommonName
	if expiry.Issuer == "" && len(leaf.Issuer.Organization) > 0 {
		expiry.Issuer = leaf.Issuer.Organization[0]
	}

	logger.GetFromContext(ctx, logger.Get()).Debug("certificate probed",
		slog.String("host", req.Host),
		slog.String("address", addr),
		slog.String("server_name", serverName),
		slog.String("common_name", expiry.Subject),
		slog.Int64("remaining_seconds", expiry.RemainingSeconds),
		slog.Time("expires", leaf.NotAfter))

	return expiry, nil
}
