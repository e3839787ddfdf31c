package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"certwatch/internal/probe"
	"certwatch/pkg/models"
)

const namespace = "certwatch"

// Collector turns scan reports into Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	expirySeconds    *prometheus.GaugeVec
	probeSuccess     *prometheus.GaugeVec
	probeFailures    *prometheus.CounterVec
	fallbackUsed     *prometheus.GaugeVec
	livenessStatus   *prometheus.GaugeVec
	livenessLatency  *prometheus.GaugeVec
	registrationDays *prometheus.GaugeVec
	alertsDelivered  prometheus.Counter
	scanDuration     prometheus.Gauge
	lastScan         prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		expirySeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "certificate_expiry_seconds",
			Help:      "Seconds until the leaf certificate expires, negative once expired.",
		}, []string{"host"}),
		probeSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_success",
			Help:      "Whether the last certificate probe succeeded (1) or failed (0).",
		}, []string{"host"}),
		probeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_failures_total",
			Help:      "Certificate probes that failed after the fallback attempt, by failure kind.",
		}, []string{"host", "kind"}),
		fallbackUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_fallback_used",
			Help:      "Whether the last probe had to use the fallback IP.",
		}, []string{"host"}),
		livenessStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "liveness_status_code",
			Help:      "HTTP status of the last liveness request, 0 when it failed.",
		}, []string{"host"}),
		livenessLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "liveness_latency_seconds",
			Help:      "Duration of the last liveness request.",
		}, []string{"host"}),
		registrationDays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registration_expiry_days",
			Help:      "Days until the domain registration expires.",
		}, []string{"domain"}),
		alertsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_delivered_total",
			Help:      "Alerts handed to the alert channel successfully.",
		}),
		scanDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of the last full scan.",
		}),
		lastScan: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix time the last scan started.",
		}),
	}

	c.registry.MustRegister(
		c.expirySeconds,
		c.probeSuccess,
		c.probeFailures,
		c.fallbackUsed,
		c.livenessStatus,
		c.livenessLatency,
		c.registrationDays,
		c.alertsDelivered,
		c.scanDuration,
		c.lastScan,
	)

	return c
}

// Observe records the per-target results of one scan.
func (c *Collector) Observe(report *models.Report) {
	if report == nil {
		return
	}

	c.scanDuration.Set(report.Duration.Seconds())
	c.lastScan.Set(float64(report.StartedAt.Unix()))

	for _, tr := range report.Targets {
		host := tr.Target.Host

		if tr.Expiry != nil {
			c.probeSuccess.WithLabelValues(host).Set(1)
			c.expirySeconds.WithLabelValues(host).Set(float64(tr.Expiry.RemainingSeconds))
		} else {
			c.probeSuccess.WithLabelValues(host).Set(0)
			c.expirySeconds.DeleteLabelValues(host)
			if tr.ProbeErr != nil {
				c.probeFailures.WithLabelValues(host, probe.KindName(tr.ProbeErr)).Inc()
			}
		}
		c.fallbackUsed.WithLabelValues(host).Set(boolToFloat(tr.UsedFallback))

		if tr.Liveness != nil {
			c.livenessStatus.WithLabelValues(host).Set(float64(tr.Liveness.StatusCode))
			c.livenessLatency.WithLabelValues(host).Set(tr.Liveness.Latency.Seconds())
		}

		if tr.Registration != nil && tr.Registration.Err == nil {
			c.registrationDays.WithLabelValues(tr.Registration.Domain).Set(float64(tr.Registration.Days))
		}
	}
}

// AlertsDelivered adds n successfully dispatched alerts.
func (c *Collector) AlertsDelivered(n int) {
	c.alertsDelivered.Add(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Push sends the current metrics to a Pushgateway under job, giving up after
// timeout.
func (c *Collector) Push(ctx context.Context, url, job string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := push.New(url, job).Gatherer(c.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushgateway push failed: %w", err)
	}
	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
