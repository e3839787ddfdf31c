package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"certwatch/pkg/models"
)

//go:embed schema.sql
var schema string

// Store appends scan results to a SQLite database. Nothing read back from it
// influences later scans.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.Exec("PRAGMA busy_timeout = 5000")
	db.Exec("PRAGMA foreign_keys = ON")

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record writes one scan, its target results and its alerts in a single
// transaction.
func (s *Store) Record(ctx context.Context, report *models.Report) error {
	if report == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO scans(started_at, duration_ms, target_count, alert_count) VALUES(?, ?, ?, ?)`,
		report.StartedAt.UTC(), report.Duration.Milliseconds(), len(report.Targets), len(report.Alerts))
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read scan id: %w", err)
	}

	for _, tr := range report.Targets {
		var (
			remaining, days sql.NullInt64
			notAfter        sql.NullTime
			issuer          sql.NullString
			statusCode      sql.NullInt64
			latency         sql.NullInt64
		)
		if tr.Expiry != nil {
			remaining = sql.NullInt64{Int64: tr.Expiry.RemainingSeconds, Valid: true}
			days = sql.NullInt64{Int64: tr.Expiry.Days(), Valid: true}
			if !tr.Expiry.NotAfter.IsZero() {
				notAfter = sql.NullTime{Time: tr.Expiry.NotAfter.UTC(), Valid: true}
			}
			issuer = nullString(tr.Expiry.Issuer)
		}
		livenessErr := sql.NullString{}
		if l := tr.Liveness; l != nil {
			latency = sql.NullInt64{Int64: l.Latency.Milliseconds(), Valid: true}
			if l.StatusCode != 0 {
				statusCode = sql.NullInt64{Int64: int64(l.StatusCode), Valid: true}
			}
			if l.Err != nil {
				livenessErr = nullString(l.Err.Error())
			}
		}
		probeErr := sql.NullString{}
		if tr.ProbeErr != nil {
			probeErr = nullString(tr.ProbeErr.Error())
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO target_results(scan_id, host, port, remaining_seconds, days_left, not_after, issuer,
				probe_error, used_fallback, status_code, latency_ms, liveness_error, checked_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			scanID, tr.Target.Host, int(tr.Target.Port), remaining, days, notAfter, issuer,
			probeErr, tr.UsedFallback, statusCode, latency, livenessErr, report.StartedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", tr.Target.Host, err)
		}
	}

	for _, a := range report.Alerts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alerts(scan_id, kind, host, message) VALUES(?, ?, ?, ?)`,
			scanID, string(a.Kind), a.Host, a.Message); err != nil {
			return fmt.Errorf("failed to insert alert for %s: %w", a.Host, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan: %w", err)
	}
	return nil
}

// Result is one stored target result.
type Result struct {
	Host         string
	DaysLeft     sql.NullInt64
	ProbeError   string
	UsedFallback bool
	StatusCode   sql.NullInt64
	CheckedAt    time.Time
}

// Recent returns the latest results for host, newest first.
func (s *Store) Recent(ctx context.Context, host string, limit int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT host, days_left, COALESCE(probe_error, ''), used_fallback, status_code, checked_at
		FROM target_results WHERE host = ? ORDER BY checked_at DESC, id DESC LIMIT ?`,
		host, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Host, &r.DaysLeft, &r.ProbeError, &r.UsedFallback, &r.StatusCode, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
