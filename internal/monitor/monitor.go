package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"certwatch/internal/alert"
	"certwatch/internal/logger"
	"certwatch/internal/probe"
	"certwatch/pkg/models"
)

// CertificateProber measures a target's certificate, fallback included.
type CertificateProber interface {
	Probe(ctx context.Context, target models.Target, at time.Time) probe.Outcome
}

// LivenessChecker issues the timed HTTP request for http-family targets.
type LivenessChecker interface {
	Check(ctx context.Context, url string, trustCert bool, timeout time.Duration) models.LivenessResult
}

// RegistrationChecker looks up domain registration expiry.
type RegistrationChecker interface {
	Check(ctx context.Context, hostname string, now time.Time) models.RegistrationInfo
}

type Options struct {
	// Concurrency bounds how many targets are scanned at once. Values
	// below 1 scan one target at a time.
	Concurrency     int
	LivenessTimeout time.Duration
	// Registration is optional; nil skips WHOIS lookups.
	Registration RegistrationChecker
}

// Monitor runs one pass over a target list. It holds no state between
// scans.
type Monitor struct {
	prober          CertificateProber
	liveness        LivenessChecker
	registration    RegistrationChecker
	concurrency     int64
	livenessTimeout time.Duration
	clock           func() time.Time
}

func New(prober CertificateProber, liveness LivenessChecker, opts Options) *Monitor {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Monitor{
		prober:          prober,
		liveness:        liveness,
		registration:    opts.Registration,
		concurrency:     int64(concurrency),
		livenessTimeout: opts.LivenessTimeout,
		clock:           time.Now,
	}
}

// Validate checks every target's host before any network I/O happens.
func Validate(targets []models.Target) error {
	for i, t := range targets {
		if _, err := t.URL(); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
	}
	return nil
}

// Scan probes every target as of now and returns the report with the alerts
// it produced. Results keep the order of targets. A failing target never
// stops the scan; only a malformed host does, and it does so before any
// target is contacted.
func (m *Monitor) Scan(ctx context.Context, targets []models.Target, now time.Time) (*models.Report, error) {
	if err := Validate(targets); err != nil {
		return nil, err
	}

	log := logger.GetFromContext(ctx, logger.Get())
	start := m.clock()

	report := &models.Report{
		StartedAt: now,
		Targets:   make([]models.TargetReport, len(targets)),
	}

	sem := semaphore.NewWeighted(m.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, target := range targets {
		if err := sem.Acquire(gctx, 1); err != nil {
			g.Wait()
			return nil, fmt.Errorf("scan interrupted: %w", err)
		}

		g.Go(func() error {
			defer sem.Release(1)
			report.Targets[i] = m.scanTarget(gctx, target, now)
			return nil
		})
	}

	// Workers never return errors.
	_ = g.Wait()

	for _, tr := range report.Targets {
		if a, ok := alert.Evaluate(tr); ok {
			report.Alerts = append(report.Alerts, a)
		}
		if a, ok := alert.EvaluateLiveness(tr); ok {
			report.Alerts = append(report.Alerts, a)
		}
	}

	report.Duration = m.clock().Sub(start)

	log.Info("scan completed",
		slog.Int("targets", len(targets)),
		slog.Int("alerts", len(report.Alerts)),
		slog.Duration("duration", report.Duration))

	return report, nil
}

func (m *Monitor) scanTarget(ctx context.Context, target models.Target, now time.Time) models.TargetReport {
	log := logger.GetFromContext(ctx, logger.Get()).With(slog.String("host", target.Host))
	tr := models.TargetReport{Target: target}

	outcome := m.prober.Probe(ctx, target, now)
	tr.Expiry = outcome.Expiry
	tr.ProbeErr = outcome.Err
	tr.UsedFallback = outcome.UsedFallback

	if target.IsHTTP() && m.liveness != nil {
		// Validate has already accepted the URL.
		u, _ := target.URL()
		result := m.liveness.Check(ctx, u.String(), target.TrustCert, m.livenessTimeout)
		tr.Liveness = &result
	}

	if m.registration != nil {
		info := m.registration.Check(ctx, target.Hostname(), now)
		tr.Registration = &info
	}

	if tr.Expiry != nil {
		log.Debug("target scanned",
			slog.Int64("days", tr.Expiry.Days()),
			slog.Bool("fallback", tr.UsedFallback))
	} else {
		log.Debug("target scanned",
			slog.Any("probe_error", tr.ProbeErr))
	}

	return tr
}
