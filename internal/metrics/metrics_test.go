package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"certwatch/internal/probe"
	"certwatch/pkg/models"
)

func sampleReport() *models.Report {
	return &models.Report{
		StartedAt: time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Targets: []models.TargetReport{
			{
				Target:       models.Target{Host: "https://ok.test", Port: 443},
				Expiry:       &models.CertificateExpiry{RemainingSeconds: 5 * 86400},
				UsedFallback: true,
				Liveness:     &models.LivenessResult{StatusCode: 200, Latency: 250 * time.Millisecond},
				Registration: &models.RegistrationInfo{Domain: "ok.test", Days: 120},
			},
			{
				Target:   models.Target{Host: "https://down.test", Port: 443},
				ProbeErr: &probe.Error{Kind: probe.ErrConnect, Host: "down.test", Err: errors.New("refused")},
				Liveness: &models.LivenessResult{Err: errors.New("refused")},
			},
		},
	}
}

func TestCollector_Observe(t *testing.T) {
	c := NewCollector()
	c.Observe(sampleReport())
	c.AlertsDelivered(2)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"expiry seconds", testutil.ToFloat64(c.expirySeconds.WithLabelValues("https://ok.test")), 5 * 86400},
		{"probe success ok", testutil.ToFloat64(c.probeSuccess.WithLabelValues("https://ok.test")), 1},
		{"probe success down", testutil.ToFloat64(c.probeSuccess.WithLabelValues("https://down.test")), 0},
		{"failure kind", testutil.ToFloat64(c.probeFailures.WithLabelValues("https://down.test", "connect")), 1},
		{"fallback used", testutil.ToFloat64(c.fallbackUsed.WithLabelValues("https://ok.test")), 1},
		{"liveness status", testutil.ToFloat64(c.livenessStatus.WithLabelValues("https://ok.test")), 200},
		{"liveness failure status", testutil.ToFloat64(c.livenessStatus.WithLabelValues("https://down.test")), 0},
		{"liveness latency", testutil.ToFloat64(c.livenessLatency.WithLabelValues("https://ok.test")), 0.25},
		{"registration days", testutil.ToFloat64(c.registrationDays.WithLabelValues("ok.test")), 120},
		{"alerts delivered", testutil.ToFloat64(c.alertsDelivered), 2},
		{"scan duration", testutil.ToFloat64(c.scanDuration), 1.5},
	}

	for _, tt := range checks {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	c.Observe(nil)
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.Observe(sampleReport())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`certwatch_certificate_expiry_seconds{host="https://ok.test"} 432000`,
		`certwatch_probe_failures_total{host="https://down.test",kind="connect"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected exposition to contain %q", want)
		}
	}
}

func TestCollector_Push(t *testing.T) {
	var method, path, body string
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	c := NewCollector()
	c.Observe(sampleReport())

	if err := c.Push(context.Background(), gateway.URL, "certwatch", time.Second); err != nil {
		t.Fatalf("Push() returned error: %v", err)
	}
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if path != "/metrics/job/certwatch" {
		t.Errorf("path = %s, want /metrics/job/certwatch", path)
	}
	if body == "" {
		t.Error("expected metrics in push body")
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	if err := c.Push(context.Background(), failing.URL, "certwatch", time.Second); err == nil {
		t.Error("expected error from failing gateway")
	}
}

func TestCollector_Push_Timeout(t *testing.T) {
	release := make(chan struct{})
	stalled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer stalled.Close()
	defer close(release)

	c := NewCollector()
	c.Observe(sampleReport())

	done := make(chan error, 1)
	go func() {
		done <- c.Push(context.Background(), stalled.URL, "certwatch", 100*time.Millisecond)
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Push did not return after its timeout")
	}
}
