package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"certwatch/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func reportAt(at time.Time, days int64) *models.Report {
	return &models.Report{
		StartedAt: at,
		Duration:  250 * time.Millisecond,
		Targets: []models.TargetReport{
			{
				Target: models.Target{Host: "https://example.test", Port: 443},
				Expiry: &models.CertificateExpiry{
					RemainingSeconds: days * 86400,
					NotAfter:         at.Add(time.Duration(days) * 24 * time.Hour),
					Issuer:           "Test CA",
				},
				Liveness: &models.LivenessResult{StatusCode: 200, Status: "200 OK", Latency: 40 * time.Millisecond},
			},
			{
				Target:       models.Target{Host: "https://down.test", FallbackIP: "192.0.2.1", Port: 443},
				ProbeErr:     errors.New("down.test: connection failed: refused"),
				UsedFallback: true,
				Liveness:     &models.LivenessResult{Err: errors.New("refused")},
			},
		},
		Alerts: []models.Alert{
			{Kind: models.AlertLiveness, Host: "https://down.test", Message: "Request to https://down.test failed: refused"},
		},
	}
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	first := time.Date(2026, 10, 13, 8, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, reportAt(first, 6)); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}
	if err := store.Record(ctx, reportAt(first.Add(24*time.Hour), 5)); err != nil {
		t.Fatalf("Record() returned error: %v", err)
	}

	results, err := store.Recent(ctx, "https://example.test", 10)
	if err != nil {
		t.Fatalf("Recent() returned error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[0].DaysLeft.Valid || results[0].DaysLeft.Int64 != 5 {
		t.Errorf("newest result days = %+v, want 5", results[0].DaysLeft)
	}
	if results[1].DaysLeft.Int64 != 6 {
		t.Errorf("older result days = %+v, want 6", results[1].DaysLeft)
	}
	if results[0].StatusCode.Int64 != 200 {
		t.Errorf("status code = %+v, want 200", results[0].StatusCode)
	}

	down, err := store.Recent(ctx, "https://down.test", 1)
	if err != nil {
		t.Fatalf("Recent() returned error: %v", err)
	}
	if len(down) != 1 {
		t.Fatalf("limit not applied, got %d results", len(down))
	}
	if down[0].DaysLeft.Valid {
		t.Error("failed probe should store no days")
	}
	if down[0].ProbeError == "" || !down[0].UsedFallback {
		t.Errorf("unexpected failed result: %+v", down[0])
	}
	if down[0].StatusCode.Valid {
		t.Error("failed request should store no status code")
	}

	var alerts int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM alerts`).Scan(&alerts); err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if alerts != 2 {
		t.Errorf("stored %d alerts, want 2", alerts)
	}
}

func TestStore_RecordNil(t *testing.T) {
	store := openTestStore(t)
	if err := store.Record(context.Background(), nil); err != nil {
		t.Errorf("Record(nil) returned error: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "history.db")); err == nil {
		t.Error("expected error for unwritable path")
	}
}
