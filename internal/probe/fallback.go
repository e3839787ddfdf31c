package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"certwatch/internal/logger"
	"certwatch/pkg/models"
)

// CertificateProber is anything that can run a single probe attempt.
type CertificateProber interface {
	Probe(ctx context.Context, req Request) (models.CertificateExpiry, error)
}

// Outcome is the result of probing one target, fallback included. Exactly
// one of Expiry and Err is set.
type Outcome struct {
	Expiry       *models.CertificateExpiry
	Err          error
	UsedFallback bool
	// PrimaryErr is the failure that triggered the fallback attempt.
	PrimaryErr error
}

// Coordinator probes a target's hostname and retries once against its
// fallback IP when that fails.
type Coordinator struct {
	prober  CertificateProber
	timeout time.Duration
}

func NewCoordinator(prober CertificateProber, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{prober: prober, timeout: timeout}
}

// Probe measures the certificate of target as of at. The fallback attempt
// dials FallbackIP but keeps the hostname as SNI so the same certificate is
// selected.
func (c *Coordinator) Probe(ctx context.Context, target models.Target, at time.Time) Outcome {
	hostname := target.Hostname()
	if hostname == "" {
		return Outcome{Err: fmt.Errorf("invalid host %q", target.Host)}
	}

	req := Request{
		Host:       hostname,
		ServerName: hostname,
		Port:       target.Port,
		Timeout:    c.timeout,
		At:         at,
	}

	expiry, err := c.prober.Probe(ctx, req)
	if err == nil {
		return Outcome{Expiry: &expiry}
	}

	log := logger.GetFromContext(ctx, logger.Get())

	if target.FallbackIP == "" {
		log.Warn("certificate probe failed",
			slog.String("host", hostname),
			slog.String("error", err.Error()))
		return Outcome{Err: err}
	}

	log.Warn("certificate probe failed, retrying fallback address",
		slog.String("host", hostname),
		slog.String("fallback_ip", target.FallbackIP),
		slog.String("error", err.Error()))

	req.Host = target.FallbackIP
	expiry, fallbackErr := c.prober.Probe(ctx, req)
	if fallbackErr != nil {
		log.Warn("fallback certificate probe failed",
			slog.String("host", hostname),
			slog.String("fallback_ip", target.FallbackIP),
			slog.String("error", fallbackErr.Error()))
		return Outcome{Err: fallbackErr, UsedFallback: true, PrimaryErr: err}
	}

	return Outcome{Expiry: &expiry, UsedFallback: true, PrimaryErr: err}
}
