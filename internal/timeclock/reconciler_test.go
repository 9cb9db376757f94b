package timeclock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/modernmen/scheduling-core/internal/model"
	"github.com/modernmen/scheduling-core/internal/repository"
)

// Минимальная схема табельных таблиц (sqlite-friendly).
func openTimeclockDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	schema := []string{
		`CREATE TABLE clock_events (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			tenant_id TEXT NOT NULL,
			staff_id TEXT NOT NULL,
			action TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			is_manual_entry INTEGER NOT NULL DEFAULT 0,
			manual_reason TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE shift_segments (
			id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			tenant_id TEXT NOT NULL,
			staff_id TEXT NOT NULL,
			date DATETIME NOT NULL,
			clock_in DATETIME NOT NULL,
			clock_out DATETIME,
			break_minutes INTEGER NOT NULL DEFAULT 0,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			incomplete INTEGER NOT NULL DEFAULT 0,
			anomalies TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestReconciler(db *gorm.DB, now time.Time) (*Reconciler, *repository.GormClockEventRepository, *repository.GormShiftSegmentRepository) {
	events := repository.NewGormClockEventRepository(db)
	segments := repository.NewGormShiftSegmentRepository(db)
	r := NewReconciler(events, segments, zerolog.Nop())
	r.now = func() time.Time { return now }
	return r, events, segments
}

func TestReconciler_ReconcileDayPersistsSegments(t *testing.T) {
	db := openTimeclockDB(t)
	staffID := uuid.New()
	tenantID := uuid.New()
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	now := day.Add(23 * time.Hour)
	reconciler, events, segments := newTestReconciler(db, now)

	stamp := func(action model.ClockAction, hour, min int) {
		err := events.Append(context.Background(), &model.ClockEvent{
			ID:        uuid.New(),
			TenantID:  tenantID,
			StaffID:   staffID,
			Action:    action,
			Timestamp: day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute),
		})
		if err != nil {
			t.Fatalf("append %s: %v", action, err)
		}
	}
	stamp(model.ClockActionIn, 9, 0)
	stamp(model.ClockActionBreakStart, 12, 0)
	stamp(model.ClockActionBreakEnd, 12, 30)
	stamp(model.ClockActionOut, 17, 0)

	rows, err := reconciler.ReconcileDay(context.Background(), staffID, day)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(rows))
	}
	row := rows[0]
	if row.DurationMinutes != 450 || row.BreakMinutes != 30 {
		t.Fatalf("expected 450m work / 30m break, got %dm / %dm", row.DurationMinutes, row.BreakMinutes)
	}
	if row.Incomplete {
		t.Fatalf("expected complete segment")
	}
	if row.TenantID != tenantID {
		t.Fatalf("tenant_id = %s, want %s", row.TenantID, tenantID)
	}

	// Повторный пересчёт не плодит строк.
	if _, err := reconciler.ReconcileDay(context.Background(), staffID, day); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	stored, err := segments.ListForDay(context.Background(), staffID, day)
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored segment after rerun, got %d", len(stored))
	}
}

func TestReconciler_LateClockOutReplacesOpenShift(t *testing.T) {
	db := openTimeclockDB(t)
	staffID := uuid.New()
	day := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	now := day.Add(20 * time.Hour)
	reconciler, events, segments := newTestReconciler(db, now)

	stamp := func(action model.ClockAction, hour int) {
		err := events.Append(context.Background(), &model.ClockEvent{
			ID:        uuid.New(),
			TenantID:  uuid.New(),
			StaffID:   staffID,
			Action:    action,
			Timestamp: day.Add(time.Duration(hour) * time.Hour),
		})
		if err != nil {
			t.Fatalf("append %s: %v", action, err)
		}
	}

	stamp(model.ClockActionIn, 9)
	rows, err := reconciler.ReconcileDay(context.Background(), staffID, day)
	if err != nil {
		t.Fatalf("reconcile open shift: %v", err)
	}
	if len(rows) != 1 || !rows[0].Incomplete {
		t.Fatalf("expected single incomplete segment, got %+v", rows)
	}

	// Пришла забытая отметка ухода — пересчёт замещает открытую смену.
	stamp(model.ClockActionOut, 17)
	rows, err = reconciler.ReconcileDay(context.Background(), staffID, day)
	if err != nil {
		t.Fatalf("reconcile after late clock-out: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(rows))
	}
	if rows[0].Incomplete || rows[0].DurationMinutes != 480 {
		t.Fatalf("expected closed 480m segment, got %+v", rows[0])
	}

	stored, err := segments.ListForDay(context.Background(), staffID, day)
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(stored) != 1 || stored[0].Incomplete {
		t.Fatalf("stored segments not replaced: %+v", stored)
	}
}
