package models

import (
	"encoding/json"
	"time"
)

// AlertKind tells certificate alerts apart from liveness alerts.
type AlertKind string

const (
	AlertCertificate AlertKind = "certificate"
	AlertLiveness    AlertKind = "liveness"
)

type Alert struct {
	Kind    AlertKind `json:"kind"`
	Host    string    `json:"host"`
	Message string    `json:"message"`
}

// LivenessResult is the outcome of one timed HTTP request. StatusCode is 0
// when no response was received, in which case Err is set.
type LivenessResult struct {
	StatusCode int           `json:"status_code,omitempty"`
	Status     string        `json:"status,omitempty"`
	Latency    time.Duration `json:"latency"`
	Err        error         `json:"-"`
}

// RegistrationInfo is the WHOIS registration expiry of a target's domain.
type RegistrationInfo struct {
	Domain    string    `json:"domain"`
	Registrar string    `json:"registrar,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Days      int64     `json:"days"`
	Err       error     `json:"-"`
}

// TargetReport collects everything learned about one target in one scan.
type TargetReport struct {
	Target       Target             `json:"target"`
	Expiry       *CertificateExpiry `json:"expiry,omitempty"`
	ProbeErr     error              `json:"-"`
	UsedFallback bool               `json:"used_fallback"`
	Liveness     *LivenessResult    `json:"liveness,omitempty"`
	Registration *RegistrationInfo  `json:"registration,omitempty"`
}

type Report struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Targets   []TargetReport `json:"targets"`
	Alerts    []Alert        `json:"alerts"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r TargetReport) MarshalJSON() ([]byte, error) {
	type plain TargetReport
	return json.Marshal(struct {
		plain
		ProbeError string `json:"probe_error,omitempty"`
	}{plain(r), errString(r.ProbeErr)})
}

func (l LivenessResult) MarshalJSON() ([]byte, error) {
	type plain LivenessResult
	return json.Marshal(struct {
		plain
		LatencyMS int64  `json:"latency_ms"`
		Error     string `json:"error,omitempty"`
	}{plain(l), l.Latency.Milliseconds(), errString(l.Err)})
}

func (i RegistrationInfo) MarshalJSON() ([]byte, error) {
	type plain RegistrationInfo
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain(i), errString(i.Err)})
}
