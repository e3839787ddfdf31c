package models

import (
	"encoding/json"
	"time"
)

// Status constants for certificate expiry tracking.
const (
	StatusActive       = "Active"
	StatusExpired      = "Expired"
	StatusExpiringSoon = "Expiring Soon"
)

// ExpirationThresholdDays is the number of remaining days at or below which
// a certificate is reported as Expiring Soon. It only affects the status
// label; alerting uses its own exact-match thresholds.
const ExpirationThresholdDays = 30

const secondsPerDay = 86400

// CertificateExpiry is the remaining validity of a leaf certificate as seen
// at probe time. RemainingSeconds is negative once the certificate expired.
type CertificateExpiry struct {
	RemainingSeconds int64     `json:"remaining_seconds"`
	NotAfter         time.Time `json:"not_after"`
	Subject          string    `json:"subject,omitempty"`
	Issuer           string    `json:"issuer,omitempty"`
}

// NewCertificateExpiry measures the validity left between now and notAfter.
func NewCertificateExpiry(now, notAfter time.Time) CertificateExpiry {
	days, secs := CalendarDiff(now, notAfter)
	return CertificateExpiry{
		RemainingSeconds: days*secondsPerDay + secs,
		NotAfter:         notAfter,
	}
}

// Days returns the whole days remaining, truncated toward zero. A
// certificate that expired less than a day ago therefore reports 0.
func (e CertificateExpiry) Days() int64 {
	return e.RemainingSeconds / secondsPerDay
}

// IsExpired reports whether the not-after instant has passed.
func (e CertificateExpiry) IsExpired() bool {
	return e.RemainingSeconds < 0
}

// Status maps the expiry onto the Active / Expiring Soon / Expired labels.
func (e CertificateExpiry) Status() string {
	switch {
	case e.IsExpired():
		return StatusExpired
	case e.Days() <= ExpirationThresholdDays:
		return StatusExpiringSoon
	default:
		return StatusActive
	}
}

// CalendarDiff returns the signed difference to - from as whole days plus
// leftover seconds. Both instants are taken in UTC and split into a Julian
// day number and a second of the day, so month lengths and leap years are
// accounted for by the calendar rather than by epoch rounding. The two
// results always carry the same sign (or are zero). Sub-second precision is
// dropped.
func CalendarDiff(from, to time.Time) (days, secs int64) {
	fromDay, fromSec := julianDay(from), secondOfDay(from)
	toDay, toSec := julianDay(to), secondOfDay(to)

	days = toDay - fromDay
	secs = toSec - fromSec

	if days > 0 && secs < 0 {
		days--
		secs += secondsPerDay
	} else if days < 0 && secs > 0 {
		days++
		secs -= secondsPerDay
	}

	return days, secs
}

// julianDay converts the UTC calendar date of t to its Julian day number
// (proleptic Gregorian calendar).
func julianDay(t time.Time) int64 {
	year, month, day := t.UTC().Date()

	a := (14 - int64(month)) / 12
	y := int64(year) + 4800 - a
	m := int64(month) + 12*a - 3

	return int64(day) + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

func secondOfDay(t time.Time) int64 {
	hour, min, sec := t.UTC().Clock()
	return int64(hour)*3600 + int64(min)*60 + int64(sec)
}

func (e CertificateExpiry) MarshalJSON() ([]byte, error) {
	type plain CertificateExpiry
	return json.Marshal(struct {
		plain
		Days   int64  `json:"days"`
		Status string `json:"status"`
	}{plain(e), e.Days(), e.Status()})
}
