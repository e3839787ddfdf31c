package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"certwatch/internal/alert"
	"certwatch/internal/logger"
	"certwatch/internal/renderer"
	"certwatch/pkg/models"
)

// Recorder persists finished reports.
type Recorder interface {
	Record(ctx context.Context, report *models.Report) error
}

// Observer receives every finished report, e.g. a metrics collector.
type Observer interface {
	Observe(report *models.Report)
}

// Runner wires a Monitor to its outputs. Everything but Monitor is optional.
type Runner struct {
	Monitor   *Monitor
	Renderer  renderer.Renderer
	Out       io.Writer
	Notifier  alert.Notifier
	Recipient string
	Observers []Observer
	History   Recorder
	// Delivered is told how many alerts reached the channel.
	Delivered func(n int)
	Now       func() time.Time
}

// Run scans targets once, writes the report, delivers its alerts and hands
// it to the observers and history. Only Scan errors are returned; output,
// delivery and history failures are logged.
func (r *Runner) Run(ctx context.Context, targets []models.Target) (*models.Report, error) {
	log := logger.GetFromContext(ctx, logger.Get())

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	report, err := r.Monitor.Scan(ctx, targets, now())
	if err != nil {
		return nil, err
	}

	if r.Renderer != nil && r.Out != nil {
		if err := r.Renderer.Render(r.Out, report); err != nil {
			log.Error("failed to write report", slog.String("error", err.Error()))
		}
	}

	delivered := alert.Dispatch(ctx, r.Notifier, r.Recipient, report.Alerts)
	if r.Delivered != nil {
		r.Delivered(delivered)
	}

	for _, o := range r.Observers {
		o.Observe(report)
	}

	if r.History != nil {
		if err := r.History.Record(ctx, report); err != nil {
			log.Error("failed to record scan history", slog.String("error", err.Error()))
		}
	}

	return report, nil
}

// Loop runs a scan immediately and then once per interval until ctx is
// done. Each pass is independent of the previous one.
func (r *Runner) Loop(ctx context.Context, targets []models.Target, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %v", interval)
	}

	log := logger.GetFromContext(ctx, logger.Get())

	if _, err := r.Run(ctx, targets); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scan loop stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Run(ctx, targets); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
