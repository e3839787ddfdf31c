package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"certwatch/pkg/models"
)

// ServeHealth handles the "/health" route
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
	}
	if report := h.Latest(); report != nil {
		response["last_scan"] = report.StartedAt.UTC().Format(time.RFC3339)
		response["targets"] = len(report.Targets)
		response["alerts"] = len(report.Alerts)
	}
	writeJSON(w, http.StatusOK, response)
}

// ServeMetrics exposes the Prometheus registry.
func (h *Handler) ServeMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		http.NotFound(w, r)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// ServeHome handles the root "/" route with the latest full report.
func (h *Handler) ServeHome(w http.ResponseWriter, r *http.Request) {
	report := h.Latest()
	if report == nil {
		http.Error(w, "No scan has completed yet", http.StatusServiceUnavailable)
		return
	}

	switch h.getOutputFormat(r) {
	case OutputFormatJSON:
		w.Header().Set("Content-Type", "application/json")
		if err := h.jsonRenderer.Render(w, report); err != nil {
			http.Error(w, "Failed to render JSON response: "+err.Error(), http.StatusInternalServerError)
		}
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := h.textRenderer.Render(w, report); err != nil {
			http.Error(w, "Failed to render text response: "+err.Error(), http.StatusInternalServerError)
		}
	}
}

// ServeHost handles the "/{host}" route with the cached result for one
// target.
func (h *Handler) ServeHost(w http.ResponseWriter, r *http.Request) {
	host := strings.ToLower(r.PathValue("host"))
	if !isHostPath(host) {
		http.Error(w, "Invalid host", http.StatusBadRequest)
		return
	}

	result, found := h.cache.Get(r.Context(), host)
	if !found {
		http.Error(w, "No result for "+host, http.StatusNotFound)
		return
	}

	h.writeResult(w, r, result)
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, result *models.TargetReport) {
	switch h.getOutputFormat(r) {
	case OutputFormatJSON:
		w.Header().Set("Content-Type", "application/json")
		if err := h.jsonRenderer.RenderTarget(w, result); err != nil {
			http.Error(w, "Failed to render JSON response: "+err.Error(), http.StatusInternalServerError)
		}
	default:
		at := time.Now()
		if report := h.Latest(); report != nil {
			at = report.StartedAt
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := h.textRenderer.RenderTarget(w, result, at); err != nil {
			http.Error(w, "Failed to render text response: "+err.Error(), http.StatusInternalServerError)
		}
	}
}

type historyEntry struct {
	CheckedAt    time.Time `json:"checked_at"`
	DaysLeft     *int64    `json:"days_left,omitempty"`
	StatusCode   *int64    `json:"status_code,omitempty"`
	UsedFallback bool      `json:"used_fallback"`
	ProbeError   string    `json:"probe_error,omitempty"`
}

// ServeHistory handles "/history?host=..." where host is the target host as
// written in the target list.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.NotFound(w, r)
		return
	}

	host := r.URL.Query().Get("host")
	if host == "" {
		http.Error(w, "Missing host parameter", http.StatusBadRequest)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	results, err := h.history.Recent(r.Context(), host, limit)
	if err != nil {
		http.Error(w, "History lookup failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	entries := make([]historyEntry, 0, len(results))
	for _, res := range results {
		e := historyEntry{
			CheckedAt:    res.CheckedAt,
			UsedFallback: res.UsedFallback,
			ProbeError:   res.ProbeError,
		}
		if res.DaysLeft.Valid {
			e.DaysLeft = &res.DaysLeft.Int64
		}
		if res.StatusCode.Valid {
			e.StatusCode = &res.StatusCode.Int64
		}
		entries = append(entries, e)
	}

	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.Encode(v)
}
