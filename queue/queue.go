// Package queue is the durable, device-resident store of reports captured
// while the remote store was unreachable. Entries survive restarts and are
// only ever removed after a confirmed replay or a terminal-invalidity purge.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apex/log"
	_ "modernc.org/sqlite"

	"fieldsync/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_reports (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	observer_id    TEXT NOT NULL,
	venue_id       TEXT NOT NULL,
	report_kind    TEXT NOT NULL,
	captured_at    TEXT NOT NULL,
	form_data      TEXT NOT NULL,
	latitude       REAL,
	longitude      REAL,
	evidence_image TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
)`

// ErrUnavailable is returned by mutating operations when local storage could
// not be opened. Callers treat it as loss of offline capability, not as a
// fatal condition.
var ErrUnavailable = fmt.Errorf("local queue storage unavailable")

// Queue is the local pending-report store backed by an embedded sqlite file
type Queue struct {
	db        *sql.DB
	available bool
}

// Open opens (or creates) the queue database at path. Open never fails the
// caller: if the file cannot be opened or written the returned queue reports
// Available() == false and degrades to no-op behavior, the same way the
// capture flow must keep working on a device that denies storage.
func Open(path string) *Queue {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		log.Warnf("Local queue unavailable, offline capture disabled: %v", err)
		return &Queue{}
	}

	// A single writer avoids SQLITE_BUSY between the submitter and the
	// sync engine.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Warnf("Local queue unavailable, offline capture disabled: %v", err)
		db.Close()
		return &Queue{}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		log.Warnf("Local queue schema creation failed, offline capture disabled: %v", err)
		db.Close()
		return &Queue{}
	}

	log.Infof("Local queue opened at %s", path)
	return &Queue{db: db, available: true}
}

// Available reports whether local storage could be opened at startup
func (q *Queue) Available() bool {
	return q.available
}

// Close closes the underlying database
func (q *Queue) Close() error {
	if !q.available {
		return nil
	}
	return q.db.Close()
}

// Enqueue persists a report and returns its locally assigned id. Ids are
// monotonically increasing and never reused within a queue file.
func (q *Queue) Enqueue(ctx context.Context, report *models.PendingReport) (int64, error) {
	if !q.available {
		log.Warn("Local queue not available, report cannot be saved locally")
		return 0, ErrUnavailable
	}

	formData, err := json.Marshal(report.FormData)
	if err != nil {
		log.Errorf("Failed to encode form data for local queue: %v", err)
		return 0, err
	}

	var lat, lon sql.NullFloat64
	if report.Geo != nil {
		lat = sql.NullFloat64{Float64: report.Geo.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: report.Geo.Longitude, Valid: true}
	}

	result, err := q.db.ExecContext(ctx, `INSERT
	  INTO pending_reports (observer_id, venue_id, report_kind, captured_at, form_data, latitude, longitude, evidence_image)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ObserverID, report.VenueID, string(report.Kind),
		report.CapturedAt.UTC().Format(time.RFC3339Nano),
		string(formData), lat, lon, report.EvidenceImage)
	if err != nil {
		log.Errorf("Failed to save report to local queue: %v", err)
		return 0, err
	}

	localID, err := result.LastInsertId()
	if err != nil {
		log.Errorf("Failed to get local id of queued report: %v", err)
		return 0, err
	}
	log.Infof("Report queued locally with id %d (venue %s)", localID, report.VenueID)
	return localID, nil
}

// ListAll returns every queued entry in insertion order
func (q *Queue) ListAll(ctx context.Context) ([]models.PendingReport, error) {
	if !q.available {
		return nil, nil
	}

	rows, err := q.db.QueryContext(ctx, `SELECT id, observer_id, venue_id, report_kind, captured_at, form_data, latitude, longitude, evidence_image
	  FROM pending_reports
	  ORDER BY id`)
	if err != nil {
		log.Errorf("Could not read pending reports: %v", err)
		return nil, err
	}
	defer rows.Close()

	reports := make([]models.PendingReport, 0)
	for rows.Next() {
		var (
			r          models.PendingReport
			kind       string
			capturedAt string
			formData   string
			lat, lon   sql.NullFloat64
		)
		if err := rows.Scan(&r.LocalID, &r.ObserverID, &r.VenueID, &kind, &capturedAt, &formData, &lat, &lon, &r.EvidenceImage); err != nil {
			log.Errorf("Cannot scan a pending report row: %v", err)
			continue
		}
		r.Kind = models.ReportKind(kind)
		if ts, err := time.Parse(time.RFC3339Nano, capturedAt); err == nil {
			r.CapturedAt = ts
		}
		if err := json.Unmarshal([]byte(formData), &r.FormData); err != nil {
			log.Errorf("Cannot decode form data of pending report %d: %v", r.LocalID, err)
			r.FormData = map[string]interface{}{}
		}
		if lat.Valid && lon.Valid {
			r.Geo = &models.GeoPoint{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Remove deletes one entry by local id. Removing an id that is already gone
// is a no-op, not an error.
func (q *Queue) Remove(ctx context.Context, localID int64) error {
	if !q.available {
		return nil
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_reports WHERE id = ?`, localID); err != nil {
		log.Errorf("Failed to delete pending report %d: %v", localID, err)
		return err
	}
	return nil
}

// Count returns the current queue depth
func (q *Queue) Count(ctx context.Context) (int, error) {
	if !q.available {
		return 0, nil
	}
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_reports`).Scan(&n); err != nil {
		log.Errorf("Failed to count pending reports: %v", err)
		return 0, err
	}
	return n, nil
}
