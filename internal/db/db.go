// Package db persists finished analysis sessions and their repetition
// metrics in sqlite.
package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/barsense-data/barbell.report/internal/monitoring"
	"github.com/barsense-data/barbell.report/internal/reps"
	"github.com/barsense-data/barbell.report/internal/signal"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the sqlite database at path. The schema
// is managed by migrations; run MigrateUp before first use.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite ships with foreign keys off.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// SessionRecord is one stored analysis session.
type SessionRecord struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	MassKg         float64   `json:"mass_kg"`
	PixelsPerMeter float64   `json:"pixels_per_meter"`
	FrameCount     int64     `json:"frame_count"`
	DurationS      float64   `json:"duration_s"`
	CreatedAt      time.Time `json:"created_at"`
}

// RepRecord is one stored repetition with its summary metrics.
type RepRecord struct {
	SessionID    string  `json:"session_id"`
	RepIndex     int64   `json:"rep_index"`
	StartIndex   int64   `json:"start_index"`
	EndIndex     int64   `json:"end_index"`
	StartTimeS   float64 `json:"start_time_s"`
	EndTimeS     float64 `json:"end_time_s"`
	MeanVelocity float64 `json:"mean_velocity"`
	PeakVelocity float64 `json:"peak_velocity"`
	PeakForce    float64 `json:"peak_force"`
}

// SampleRecord is one processed pipeline sample, stored so charts and reports
// can be rendered without re-running the analysis.
type SampleRecord struct {
	SessionID     string  `json:"session_id"`
	SampleIndex   int64   `json:"sample_index"`
	TimeS         float64 `json:"time_s"`
	PositionM     float64 `json:"position_m"`
	Velocity      float64 `json:"velocity"`
	Acceleration  float64 `json:"acceleration"`
	Force         float64 `json:"force"`
	SmoothedForce float64 `json:"smoothed_force"`
}

// SaveAnalysis stores a finished session with its samples and repetitions in
// one transaction.
func (db *DB) SaveAnalysis(rec SessionRecord, samples []signal.Sample, repetitions []reps.Repetition) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (id, status, mass_kg, pixels_per_meter, frame_count, duration_s)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Status, rec.MassKg, rec.PixelsPerMeter, rec.FrameCount, rec.DurationS,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.ID, err)
	}

	for i, s := range samples {
		_, err = tx.Exec(
			`INSERT INTO samples (session_id, sample_index, time_s, position_m, velocity, acceleration, force, smoothed_force)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, s.Time, s.PositionM, s.Velocity, s.Acceleration, s.Force, s.SmoothedForce,
		)
		if err != nil {
			return fmt.Errorf("insert sample %d: %w", i, err)
		}
	}

	for i, r := range repetitions {
		var startT, endT float64
		if r.StartIndex >= 0 && r.StartIndex < len(samples) {
			startT = samples[r.StartIndex].Time
		}
		if r.EndIndex >= 0 && r.EndIndex < len(samples) {
			endT = samples[r.EndIndex].Time
		}
		_, err = tx.Exec(
			`INSERT INTO repetitions (session_id, rep_index, start_index, end_index, start_time_s, end_time_s, mean_velocity, peak_velocity, peak_force)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, r.StartIndex, r.EndIndex, startT, endT, r.MeanVelocity, r.PeakVelocity, r.PeakForce,
		)
		if err != nil {
			return fmt.Errorf("insert repetition %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	monitoring.Logf("saved session %s: %d samples, %d reps", rec.ID, len(samples), len(repetitions))
	return nil
}

// Sessions returns the most recent stored sessions, newest first.
func (db *DB) Sessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT id, status, mass_kg, pixels_per_meter, frame_count, duration_s, created_at
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Status, &rec.MassKg, &rec.PixelsPerMeter,
			&rec.FrameCount, &rec.DurationS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// Session returns a stored session by ID, or sql.ErrNoRows.
func (db *DB) Session(id string) (SessionRecord, error) {
	var rec SessionRecord
	err := db.QueryRow(
		`SELECT id, status, mass_kg, pixels_per_meter, frame_count, duration_s, created_at
		 FROM sessions WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Status, &rec.MassKg, &rec.PixelsPerMeter,
			&rec.FrameCount, &rec.DurationS, &rec.CreatedAt)
	return rec, err
}

// Reps returns the stored repetitions of a session in rep order.
func (db *DB) Reps(sessionID string) ([]RepRecord, error) {
	rows, err := db.Query(
		`SELECT session_id, rep_index, start_index, end_index, start_time_s, end_time_s, mean_velocity, peak_velocity, peak_force
		 FROM repetitions WHERE session_id = ? ORDER BY rep_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RepRecord
	for rows.Next() {
		var r RepRecord
		if err := rows.Scan(&r.SessionID, &r.RepIndex, &r.StartIndex, &r.EndIndex,
			&r.StartTimeS, &r.EndTimeS, &r.MeanVelocity, &r.PeakVelocity, &r.PeakForce); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Samples returns the stored pipeline samples of a session in time order.
func (db *DB) Samples(sessionID string) ([]SampleRecord, error) {
	rows, err := db.Query(
		`SELECT session_id, sample_index, time_s, position_m, velocity, acceleration, force, smoothed_force
		 FROM samples WHERE session_id = ? ORDER BY sample_index`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SampleRecord
	for rows.Next() {
		var s SampleRecord
		if err := rows.Scan(&s.SessionID, &s.SampleIndex, &s.TimeS, &s.PositionM,
			&s.Velocity, &s.Acceleration, &s.Force, &s.SmoothedForce); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AttachAdminRoutes mounts the tailsql live SQL console and a backup endpoint
// under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://barbell.db", db.DB, &tailsql.DBOptions{
		Label: "Barbell DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			monitoring.Logf("failed to stream backup: %v", err)
		}
	}))
	return nil
}
