package models

import (
	"testing"
	"time"
)

func TestCertificateExpiry_Days(t *testing.T) {
	tests := []struct {
		name      string
		remaining int64
		wantDays  int64
		expired   bool
	}{
		{"exactly five days", 5 * 86400, 5, false},
		{"five days minus one second", 5*86400 - 1, 4, false},
		{"zero is not expired", 0, 0, false},
		{"one second past expiry", -1, 0, true},
		{"half a day past expiry", -43200, 0, true},
		{"one day past expiry", -86400, -1, true},
		{"just under two days past expiry", -2*86400 + 1, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := CertificateExpiry{RemainingSeconds: tt.remaining}
			if got := e.Days(); got != tt.wantDays {
				t.Errorf("Days() = %d, want %d", got, tt.wantDays)
			}
			if got := e.IsExpired(); got != tt.expired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestCertificateExpiry_Status(t *testing.T) {
	tests := []struct {
		remaining int64
		want      string
	}{
		{-1, StatusExpired},
		{0, StatusExpiringSoon},
		{30 * 86400, StatusExpiringSoon},
		{31 * 86400, StatusActive},
	}

	for _, tt := range tests {
		e := CertificateExpiry{RemainingSeconds: tt.remaining}
		if got := e.Status(); got != tt.want {
			t.Errorf("Status() for %ds = %q, want %q", tt.remaining, got, tt.want)
		}
	}
}

func TestCalendarDiff(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		to       time.Time
		wantDays int64
		wantSecs int64
	}{
		{
			name:     "same instant",
			from:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			to:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			wantDays: 0,
			wantSecs: 0,
		},
		{
			name:     "across leap day",
			from:     time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC),
			to:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			wantDays: 2,
			wantSecs: 0,
		},
		{
			name:     "across non-leap february",
			from:     time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC),
			to:       time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC),
			wantDays: 1,
			wantSecs: 0,
		},
		{
			name:     "leftover seconds borrowed from the day count",
			from:     time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC),
			to:       time.Date(2025, 1, 2, 1, 0, 0, 0, time.UTC),
			wantDays: 1,
			wantSecs: 7200,
		},
		{
			name:     "less than a day in the past",
			from:     time.Date(2024, 6, 2, 6, 0, 0, 0, time.UTC),
			to:       time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC),
			wantDays: 0,
			wantSecs: -43200,
		},
		{
			name:     "several days in the past",
			from:     time.Date(2024, 6, 10, 6, 0, 0, 0, time.UTC),
			to:       time.Date(2024, 6, 7, 12, 0, 0, 0, time.UTC),
			wantDays: -2,
			wantSecs: -64800,
		},
		{
			name:     "non-UTC locations are normalised",
			from:     time.Date(2024, 1, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600)),
			to:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantDays: 0,
			wantSecs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, secs := CalendarDiff(tt.from, tt.to)
			if days != tt.wantDays || secs != tt.wantSecs {
				t.Errorf("CalendarDiff() = (%d, %d), want (%d, %d)", days, secs, tt.wantDays, tt.wantSecs)
			}

			// The split must agree with plain elapsed time.
			want := int64(tt.to.Sub(tt.from) / time.Second)
			if got := days*86400 + secs; got != want {
				t.Errorf("total seconds = %d, want %d", got, want)
			}
		})
	}
}

func TestNewCertificateExpiry(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	notAfter := now.Add(5 * 24 * time.Hour)

	e := NewCertificateExpiry(now, notAfter)
	if e.RemainingSeconds != 5*86400 {
		t.Errorf("RemainingSeconds = %d, want %d", e.RemainingSeconds, 5*86400)
	}
	if e.Days() != 5 {
		t.Errorf("Days() = %d, want 5", e.Days())
	}
	if !e.NotAfter.Equal(notAfter) {
		t.Errorf("NotAfter = %v, want %v", e.NotAfter, notAfter)
	}

	expired := NewCertificateExpiry(now, now.Add(-12*time.Hour))
	if !expired.IsExpired() || expired.Days() != 0 {
		t.Errorf("expired certificate: IsExpired=%v Days=%d, want true and 0", expired.IsExpired(), expired.Days())
	}
}
