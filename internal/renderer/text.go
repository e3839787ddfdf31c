package renderer

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"certwatch/pkg/models"
)

type Renderer interface {
	Render(w io.Writer, report *models.Report) error
}

// TextRenderer writes the line-oriented report: the host, then one indented
// line per check, then a blank line.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (t *TextRenderer) Render(w io.Writer, report *models.Report) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	for i := range report.Targets {
		if err := t.RenderTarget(w, &report.Targets[i], report.StartedAt); err != nil {
			return err
		}
	}

	if len(report.Alerts) > 0 {
		fmt.Fprintf(w, "[ ALERTS ]\n")
		for _, a := range report.Alerts {
			fmt.Fprintf(w, "  ⚠ %s\n", a.Message)
		}
		fmt.Fprintf(w, "\n")
	}

	return nil
}

// RenderTarget writes the block for a single target. Dates are described
// relative to at.
func (t *TextRenderer) RenderTarget(w io.Writer, tr *models.TargetReport, at time.Time) error {
	if _, err := fmt.Fprintf(w, "%s\n", tr.Target.Host); err != nil {
		return err
	}

	switch {
	case tr.Expiry != nil && tr.Expiry.IsExpired():
		fmt.Fprintf(w, " - certificate expired %d days ago%s\n", -tr.Expiry.Days(), notAfter(tr.Expiry, at))
	case tr.Expiry != nil:
		fmt.Fprintf(w, " - certificate expires in %d days%s\n", tr.Expiry.Days(), notAfter(tr.Expiry, at))
	case tr.ProbeErr != nil:
		fmt.Fprintf(w, " - certificate check failed: %v\n", tr.ProbeErr)
	}

	if tr.UsedFallback && tr.Expiry != nil {
		fmt.Fprintf(w, " - certificate read from fallback address %s\n", tr.Target.FallbackIP)
	}

	if l := tr.Liveness; l != nil {
		if l.Err != nil {
			fmt.Fprintf(w, " - request failed: %v\n", l.Err)
		} else {
			fmt.Fprintf(w, " - response: %s in %dms\n", l.Status, l.Latency.Milliseconds())
		}
	}

	if r := tr.Registration; r != nil {
		if r.Err != nil {
			fmt.Fprintf(w, " - registration check failed: %v\n", r.Err)
		} else {
			fmt.Fprintf(w, " - domain %s registered until %s (%d days)\n",
				r.Domain, r.ExpiresAt.Format("2006-01-02"), r.Days)
		}
	}

	_, err := fmt.Fprintf(w, "\n")
	return err
}

func notAfter(e *models.CertificateExpiry, at time.Time) string {
	if e.NotAfter.IsZero() {
		return ""
	}
	return fmt.Sprintf(" (%s, %s)",
		e.NotAfter.UTC().Format("2006-01-02"),
		humanize.RelTime(e.NotAfter, at, "ago", "from now"))
}
