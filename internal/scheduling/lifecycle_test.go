package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modernmen/scheduling-core/internal/model"
)

func seedOccurrence(
	t *testing.T,
	db *gorm.DB,
	series *model.RecurringSeries,
	scheduledAt time.Time,
	status model.OccurrenceStatus,
) *model.Occurrence {
	t.Helper()

	occ := &model.Occurrence{
		ID:          uuid.New(),
		SeriesID:    series.ID,
		TenantID:    series.TenantID,
		ScheduledAt: scheduledAt,
		EndsAt:      scheduledAt.Add(time.Hour),
		StaffID:     series.StaffID,
		LocationID:  series.LocationID,
		Status:      status,
		Generated:   true,
	}
	if err := db.Create(occ).Error; err != nil {
		t.Fatalf("seed occurrence: %v", err)
	}
	return occ
}

func reloadOccurrence(t *testing.T, db *gorm.DB, id uuid.UUID) *model.Occurrence {
	t.Helper()
	var occ model.Occurrence
	if err := db.First(&occ, "id = ?", id).Error; err != nil {
		t.Fatalf("reload occurrence: %v", err)
	}
	return &occ
}

func TestLifecycleManager_CancelCascadesToFutureOnly(t *testing.T) {
	db := openSchedulingDB(t)
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	_, lifecycle := newTestEngine(db, &wideOpenAvailability{}, now)

	series := seedSeries(t, db, dailyPattern(), func(s *model.RecurringSeries) {
		s.Statistics = model.SeriesStatistics{Total: 3, Completed: 1}
	})
	past := seedOccurrence(t, db, series, now.AddDate(0, 0, -2), model.OccurrenceStatusCompleted)
	futurePending := seedOccurrence(t, db, series, now.AddDate(0, 0, 1), model.OccurrenceStatusPending)
	futureConfirmed := seedOccurrence(t, db, series, now.AddDate(0, 0, 2), model.OccurrenceStatusConfirmed)

	updated, err := lifecycle.Transition(context.Background(), series.ID, ActionCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != model.SeriesStatusCancelled {
		t.Fatalf("status = %s, want cancelled", updated.Status)
	}
	if updated.NextOccurrence != nil {
		t.Fatalf("terminal series must have nil next_occurrence")
	}

	// Будущие не начавшиеся посещения отменены каскадом.
	if got := reloadOccurrence(t, db, futurePending.ID).Status; got != model.OccurrenceStatusCancelled {
		t.Fatalf("future pending = %s, want cancelled", got)
	}
	if got := reloadOccurrence(t, db, futureConfirmed.ID).Status; got != model.OccurrenceStatusCancelled {
		t.Fatalf("future confirmed = %s, want cancelled", got)
	}
	// Прошедшее завершённое не тронуто, статистика цела.
	if got := reloadOccurrence(t, db, past.ID).Status; got != model.OccurrenceStatusCompleted {
		t.Fatalf("past occurrence = %s, want completed", got)
	}
	reloaded := reloadSeries(t, db, series.ID)
	if reloaded.Statistics.Completed != 1 || reloaded.Statistics.Total != 3 {
		t.Fatalf("statistics changed by cancel: %+v", reloaded.Statistics)
	}
}

func TestLifecycleManager_PauseKeepsNextOccurrence(t *testing.T) {
	db := openSchedulingDB(t)
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	_, lifecycle := newTestEngine(db, &wideOpenAvailability{}, now)

	next := time.Date(2024, time.June, 12, 10, 0, 0, 0, time.UTC)
	series := seedSeries(t, db, dailyPattern(), func(s *model.RecurringSeries) {
		s.NextOccurrence = &next
	})

	paused, err := lifecycle.Transition(context.Background(), series.ID, ActionPause)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != model.SeriesStatusPaused {
		t.Fatalf("status = %s, want paused", paused.Status)
	}
	if paused.NextOccurrence == nil || !paused.NextOccurrence.Equal(next) {
		t.Fatalf("pause must keep next_occurrence, got %v", paused.NextOccurrence)
	}

	resumed, err := lifecycle.Transition(context.Background(), series.ID, ActionResume)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != model.SeriesStatusActive {
		t.Fatalf("status = %s, want active", resumed.Status)
	}
}

func TestLifecycleManager_IllegalTransitions(t *testing.T) {
	db := openSchedulingDB(t)
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	_, lifecycle := newTestEngine(db, &wideOpenAvailability{}, now)

	cancelled := seedSeries(t, db, dailyPattern(), func(s *model.RecurringSeries) {
		s.Status = model.SeriesStatusCancelled
	})
	_, err := lifecycle.Transition(context.Background(), cancelled.ID, ActionResume)

	var stateErr *StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
	if stateErr.From != model.SeriesStatusCancelled || stateErr.Action != ActionResume {
		t.Fatalf("unexpected StateError: %+v", stateErr)
	}

	paused := seedSeries(t, db, dailyPattern(), func(s *model.RecurringSeries) {
		s.Status = model.SeriesStatusPaused
	})
	if _, err := lifecycle.Transition(context.Background(), paused.ID, ActionComplete); !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError for paused complete, got %v", err)
	}
}

func TestLifecycleManager_RecordOutcomeIncrementsOnce(t *testing.T) {
	db := openSchedulingDB(t)
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	_, lifecycle := newTestEngine(db, &wideOpenAvailability{}, now)

	series := seedSeries(t, db, dailyPattern(), nil)
	occ := seedOccurrence(t, db, series, now.AddDate(0, 0, -1), model.OccurrenceStatusPending)

	if err := lifecycle.RecordOutcome(context.Background(), occ.ID, model.OccurrenceStatusCompleted); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if got := reloadOccurrence(t, db, occ.ID).Status; got != model.OccurrenceStatusCompleted {
		t.Fatalf("occurrence status = %s, want completed", got)
	}
	if got := reloadSeries(t, db, series.ID).Statistics.Completed; got != 1 {
		t.Fatalf("stat_completed = %d, want 1", got)
	}

	// Повтор того же исхода счётчик не двигает.
	if err := lifecycle.RecordOutcome(context.Background(), occ.ID, model.OccurrenceStatusCompleted); err != nil {
		t.Fatalf("repeat outcome: %v", err)
	}
	if got := reloadSeries(t, db, series.ID).Statistics.Completed; got != 1 {
		t.Fatalf("stat_completed after repeat = %d, want 1", got)
	}

	// pending — не исход.
	if err := lifecycle.RecordOutcome(context.Background(), occ.ID, model.OccurrenceStatusPending); err == nil {
		t.Fatalf("expected error for non-outcome status")
	}
}

func TestLifecycleManager_CorrectStatistics(t *testing.T) {
	db := openSchedulingDB(t)
	now := time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	_, lifecycle := newTestEngine(db, &wideOpenAvailability{}, now)

	series := seedSeries(t, db, dailyPattern(), func(s *model.RecurringSeries) {
		s.Statistics = model.SeriesStatistics{Total: 10, Completed: 9}
	})

	if err := lifecycle.CorrectStatistics(context.Background(), series.ID, model.SeriesStatistics{
		Total: 10, Completed: 8, Cancelled: 1, NoShow: 1,
	}); err != nil {
		t.Fatalf("correct statistics: %v", err)
	}

	got := reloadSeries(t, db, series.ID).Statistics
	if got.Total != 10 || got.Completed != 8 || got.Cancelled != 1 || got.NoShow != 1 {
		t.Fatalf("statistics = %+v", got)
	}
}
