package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"certwatch/internal/cache"
	"certwatch/internal/config"
	"certwatch/internal/history"
	"certwatch/internal/logger"
	"certwatch/internal/renderer"
	"certwatch/pkg/models"
)

// HistoryReader serves stored results for one host.
type HistoryReader interface {
	Recent(ctx context.Context, host string, limit int) ([]history.Result, error)
}

// Handler serves the results of the most recent scan. It is fed through
// Observe by the scan loop and never scans on its own.
type Handler struct {
	cache        cache.Store
	latest       atomic.Pointer[models.Report]
	metrics      http.Handler
	history      HistoryReader
	jsonRenderer *renderer.JSONRenderer
	textRenderer *renderer.TextRenderer
	config       *config.Config
	logger       *slog.Logger
}

// NewHandler builds the serve-mode handler. metrics and hist may be nil, in
// which case their routes answer 404.
func NewHandler(cfg *config.Config, metrics http.Handler, hist HistoryReader) *Handler {
	log := logger.Get()
	var store cache.Store

	switch cfg.Cache.Mode {
	case config.CacheModeMem:
		store = cache.NewMemoryStore(cfg.Cache.TTL)
		log.Info("cache initialized",
			slog.String("mode", "memory"),
			slog.Duration("ttl", cfg.Cache.TTL))
	case config.CacheModeNone:
		store = cache.NewNoOpStore()
		log.Info("cache initialized",
			slog.String("mode", "none"))
	default:
		store = cache.NewNoOpStore()
		log.Warn("unknown cache mode, using no-op",
			slog.String("mode", string(cfg.Cache.Mode)))
	}

	return &Handler{
		cache:        store,
		metrics:      metrics,
		history:      hist,
		jsonRenderer: renderer.NewJSONRenderer(),
		textRenderer: renderer.NewTextRenderer(),
		config:       cfg,
		logger:       log,
	}
}

// Observe publishes a finished scan. Results of earlier scans are dropped and
// each target result is cached under its hostname and under hostname:port.
func (h *Handler) Observe(report *models.Report) {
	if report == nil {
		return
	}
	h.latest.Store(report)

	ctx := context.Background()
	h.cache.Clear()
	for i := range report.Targets {
		tr := &report.Targets[i]
		hostname := strings.ToLower(tr.Target.Hostname())
		if hostname == "" {
			continue
		}
		h.cache.Set(ctx, hostname, tr)
		h.cache.Set(ctx, net.JoinHostPort(hostname, strconv.Itoa(int(tr.Target.Port))), tr)
	}

	h.logger.Debug("scan results published",
		slog.Int("targets", len(report.Targets)),
		slog.Int("cached", h.cache.Size()))
}

// Close stops the result cache.
func (h *Handler) Close() {
	h.cache.Close()
}

// Latest returns the most recent report, or nil before the first scan.
func (h *Handler) Latest() *models.Report {
	return h.latest.Load()
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.ServeHome)
	mux.HandleFunc("GET /health", h.ServeHealth)
	mux.HandleFunc("GET /metrics", h.ServeMetrics)
	mux.HandleFunc("GET /history", h.ServeHistory)
	mux.HandleFunc("GET /{host}", h.ServeHost)
	return mux
}

type OutputFormat int

const (
	OutputFormatText OutputFormat = iota
	OutputFormatJSON
)

func (f OutputFormat) String() string {
	switch f {
	case OutputFormatText:
		return "text"
	case OutputFormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

func (h *Handler) getOutputFormat(r *http.Request) OutputFormat {
	if r.URL.Query().Get("format") == "json" {
		return OutputFormatJSON
	}

	// Check Accept header
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return OutputFormatJSON
	}

	return OutputFormatText
}

var hostRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-\.]*[a-zA-Z0-9])?(\:[0-9]+)?$`)

func isHostPath(host string) bool {
	return host != "" && hostRegex.MatchString(host)
}
