package alert

import (
	"fmt"
	"slices"

	"certwatch/pkg/models"
)

// Thresholds are the remaining-day counts that fire a certificate alert.
// Matching is exact: a scan that misses the day a count is reached does not
// alert for it.
var Thresholds = []int64{30, 15, 10, 5, 1}

// ShouldAlert reports whether e warrants a certificate alert.
func ShouldAlert(e models.CertificateExpiry) bool {
	return e.IsExpired() || slices.Contains(Thresholds, e.Days())
}

// Evaluate decides whether a target's certificate result is alertable. Probe
// failures never are.
func Evaluate(report models.TargetReport) (models.Alert, bool) {
	if report.Expiry == nil || !ShouldAlert(*report.Expiry) {
		return models.Alert{}, false
	}

	e := *report.Expiry

	var message string
	if e.IsExpired() {
		message = fmt.Sprintf("Certificate for %s has expired (%d days)", report.Target.Host, e.Days())
	} else {
		message = fmt.Sprintf("Certificate for %s expires in %d days", report.Target.Host, e.Days())
	}

	return models.Alert{
		Kind:    models.AlertCertificate,
		Host:    report.Target.Host,
		Message: message,
	}, true
}

// EvaluateLiveness fires when the liveness request itself failed.
func EvaluateLiveness(report models.TargetReport) (models.Alert, bool) {
	if report.Liveness == nil || report.Liveness.Err == nil {
		return models.Alert{}, false
	}

	return models.Alert{
		Kind:    models.AlertLiveness,
		Host:    report.Target.Host,
		Message: fmt.Sprintf("Request to %s failed: %v", report.Target.Host, report.Liveness.Err),
	}, true
}
