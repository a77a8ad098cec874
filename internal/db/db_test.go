package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barsense-data/barbell.report/internal/monitoring"
	"github.com/barsense-data/barbell.report/internal/reps"
	"github.com/barsense-data/barbell.report/internal/signal"
)

const migrationsDir = "../../db/migrations"

func init() {
	monitoring.SetLogger(nil)
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func testSamples() []signal.Sample {
	return []signal.Sample{
		{Time: 0.0, PositionM: 0.00, Velocity: 0.0, Force: 981, SmoothedForce: 981},
		{Time: 0.1, PositionM: 0.05, Velocity: 0.5, Force: 1000, SmoothedForce: 990},
		{Time: 0.2, PositionM: 0.10, Velocity: 0.5, Force: 981, SmoothedForce: 985},
		{Time: 0.3, PositionM: 0.15, Velocity: 0.4, Force: 960, SmoothedForce: 975},
	}
}

func TestSaveAndLoadAnalysis(t *testing.T) {
	db := setupTestDB(t)

	rec := SessionRecord{
		ID:             "s-001",
		Status:         "completed",
		MassKg:         100,
		PixelsPerMeter: 1000,
		FrameCount:     4,
		DurationS:      0.3,
	}
	repetitions := []reps.Repetition{
		{StartIndex: 1, EndIndex: 3, MeanVelocity: 0.47, PeakVelocity: 0.5, PeakForce: 990},
	}

	require.NoError(t, db.SaveAnalysis(rec, testSamples(), repetitions))

	got, err := db.Session("s-001")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 100.0, got.MassKg)
	assert.Equal(t, int64(4), got.FrameCount)
	assert.False(t, got.CreatedAt.IsZero(), "expected created_at to be populated")

	stored, err := db.Reps("s-001")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 0.47, stored[0].MeanVelocity)
	assert.Equal(t, 990.0, stored[0].PeakForce)
	// Rep interval endpoints resolve to sample timestamps.
	assert.Equal(t, 0.1, stored[0].StartTimeS)
	assert.Equal(t, 0.3, stored[0].EndTimeS)

	samples, err := db.Samples("s-001")
	require.NoError(t, err)
	require.Len(t, samples, 4)
	assert.Equal(t, 0.5, samples[1].Velocity)
	assert.Equal(t, 990.0, samples[1].SmoothedForce)
}

func TestSessionNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Session("missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	for i, id := range []string{"a", "b", "c"} {
		rec := SessionRecord{ID: id, Status: "completed", MassKg: 60, PixelsPerMeter: 800}
		if err := db.SaveAnalysis(rec, nil, nil); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
		// Same-second inserts share a created_at; force distinct ordering.
		if _, err := db.Exec("UPDATE sessions SET created_at = datetime('now', ?) WHERE id = ?",
			fmt.Sprintf("-%d minutes", 2-i), id); err != nil {
			t.Fatalf("backdate %s: %v", id, err)
		}
	}

	sessions, err := db.Sessions(10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "c" || sessions[2].ID != "a" {
		t.Errorf("expected newest-first ordering, got %s..%s", sessions[0].ID, sessions[2].ID)
	}
}

func TestSessionsLimit(t *testing.T) {
	db := setupTestDB(t)
	for _, id := range []string{"a", "b", "c"} {
		rec := SessionRecord{ID: id, Status: "completed", MassKg: 60, PixelsPerMeter: 800}
		if err := db.SaveAnalysis(rec, nil, nil); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	sessions, err := db.Sessions(2)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected limit of 2, got %d", len(sessions))
	}
}

func TestDuplicateSessionRejected(t *testing.T) {
	db := setupTestDB(t)
	rec := SessionRecord{ID: "dup", Status: "completed", MassKg: 60, PixelsPerMeter: 800}
	if err := db.SaveAnalysis(rec, nil, nil); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := db.SaveAnalysis(rec, nil, nil); err == nil {
		t.Error("expected primary key violation on duplicate session ID")
	}
}

func TestMigrateVersionAndDown(t *testing.T) {
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if dirty {
		t.Error("expected clean migration state")
	}
	latest, err := GetLatestMigrationVersion(migrationsDir)
	if err != nil {
		t.Fatalf("latest version: %v", err)
	}
	if version != latest {
		t.Errorf("version = %d, want latest %d", version, latest)
	}

	if err := db.MigrateDown(migrationsDir); err != nil {
		t.Fatalf("down: %v", err)
	}
	version, _, err = db.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatalf("version after down: %v", err)
	}
	if version != latest-1 {
		t.Errorf("version after down = %d, want %d", version, latest-1)
	}
}
