package renderer

import (
	"encoding/json"
	"io"

	"certwatch/pkg/models"
)

// JSONRenderer writes reports as JSON documents, one per Render call.
type JSONRenderer struct {
	Indent bool
}

func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{Indent: true}
}

// summary counts are derived from the report, never stored with it.
type summary struct {
	Targets       int `json:"targets"`
	ProbeFailures int `json:"probe_failures"`
	Expired       int `json:"expired"`
	LivenessDown  int `json:"liveness_failures"`
	Alerts        int `json:"alerts"`
}

type document struct {
	*models.Report
	Summary summary `json:"summary"`
}

func summarize(report *models.Report) summary {
	s := summary{Targets: len(report.Targets), Alerts: len(report.Alerts)}
	for _, tr := range report.Targets {
		switch {
		case tr.Expiry == nil:
			s.ProbeFailures++
		case tr.Expiry.IsExpired():
			s.Expired++
		}
		if tr.Liveness != nil && tr.Liveness.Err != nil {
			s.LivenessDown++
		}
	}
	return s
}

func (j *JSONRenderer) Render(w io.Writer, report *models.Report) error {
	if report == nil {
		return json.NewEncoder(w).Encode(map[string]string{"error": "report cannot be nil"})
	}

	return j.encode(w, document{Report: report, Summary: summarize(report)})
}

// RenderTarget encodes a single target result.
func (j *JSONRenderer) RenderTarget(w io.Writer, tr *models.TargetReport) error {
	return j.encode(w, tr)
}

func (j *JSONRenderer) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
