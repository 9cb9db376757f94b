package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/modernmen/scheduling-core/internal/model"
	"github.com/modernmen/scheduling-core/internal/recurrence"
	"github.com/modernmen/scheduling-core/internal/repository"
)

// Максимум подряд пропущенных из-за конфликтов дат за один вызов.
const maxConsecutiveSkips = 10

// StalledError — серия упёрлась в полосу конфликтов.
// Серия остаётся активной; дальше разбирается оператор.
type StalledError struct {
	SeriesID    uuid.UUID
	LastAttempt time.Time
}

func (e *StalledError) Error() string {
	return fmt.Sprintf(
		"series %s: materialization stalled after %d consecutive conflicts, last attempted %s",
		e.SeriesID, maxConsecutiveSkips, e.LastAttempt.Format(time.RFC3339),
	)
}

// Materializer разворачивает серию в конкретные посещения.
// Идемпотентен: защита от дублей — уникальность (series_id, scheduled_at),
// повторная вставка той же даты деградирует в no-op.
type Materializer struct {
	series      repository.SeriesRepository
	occurrences repository.OccurrenceRepository
	events      repository.EventRepository
	checker     *ConflictChecker
	lifecycle   *LifecycleManager

	log zerolog.Logger
	now func() time.Time
}

func NewMaterializer(
	series repository.SeriesRepository,
	occurrences repository.OccurrenceRepository,
	events repository.EventRepository,
	checker *ConflictChecker,
	lifecycle *LifecycleManager,
	log zerolog.Logger,
) *Materializer {
	return &Materializer{
		series:      series,
		occurrences: occurrences,
		events:      events,
		checker:     checker,
		lifecycle:   lifecycle,
		log:         log,
		now:         time.Now,
	}
}

// Materialize создаёт недостающие посещения серии вперёд от "сейчас",
// не больше horizon дат за вызов. Пропущенные в прошлом даты не
// навёрстываются: при возобновлении серия пересчитывается только вперёд.
func (m *Materializer) Materialize(ctx context.Context, seriesID uuid.UUID, horizon int) ([]model.Occurrence, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("series %s: horizon must be positive", seriesID)
	}

	series, err := m.series.GetByID(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	if series.Status != model.SeriesStatusActive {
		m.log.Debug().
			Str("series_id", seriesID.String()).
			Str("status", string(series.Status)).
			Msg("materialization skipped: series not active")
		return nil, nil
	}

	pattern, err := series.PatternSpec()
	if err != nil {
		return nil, fmt.Errorf("parse pattern: %w", err)
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}

	existing, err := m.occurrences.CountBySeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("count occurrences: %w", err)
	}

	var (
		created   []model.Occurrence
		total     = existing
		cursor    = m.now()
		skips     = 0
		produced  = 0
		completed = false
	)

	for produced < horizon {
		if series.MaxOccurrences != nil && total >= int64(*series.MaxOccurrences) {
			completed = true
			break
		}

		next, err := recurrence.NextOccurrence(pattern, cursor, series.StartDate)
		if errors.Is(err, recurrence.ErrNoUpcomingOccurrence) {
			// Конечный паттерн исчерпан.
			completed = series.EndDate != nil || pattern.Frequency == recurrence.FreqCustom
			break
		}
		if err != nil {
			return created, err
		}
		if series.EndDate != nil && next.After(endOfDay(*series.EndDate)) {
			completed = true
			break
		}

		decision, err := m.checker.Check(ctx, Candidate{
			TenantID:        series.TenantID,
			StaffID:         deref(series.StaffID),
			LocationID:      deref(series.LocationID),
			Start:           next,
			DurationMinutes: pattern.DurationMinutes,
		})
		if err != nil {
			return created, fmt.Errorf("check availability: %w", err)
		}
		if !decision.OK {
			skips++
			if skips > maxConsecutiveSkips {
				m.log.Warn().
					Str("series_id", seriesID.String()).
					Time("last_attempt", next).
					Str("reason", string(decision.Reason)).
					Msg("materialization stalled")
				// Уже созданные в этом вызове посещения учитываются
				// даже при заторе: статистика и следующая дата не теряются.
				if err := m.finish(ctx, series, pattern, cursor, created, false); err != nil {
					return created, err
				}
				return created, &StalledError{SeriesID: seriesID, LastAttempt: next}
			}
			cursor = startOfNextDay(next)
			continue
		}
		skips = 0

		// Конкурентная отмена должна быть видна в пределах одной итерации:
		// статус перечитывается перед каждой вставкой.
		status, err := m.series.GetStatus(ctx, seriesID)
		if err != nil {
			return created, fmt.Errorf("recheck status: %w", err)
		}
		if status != model.SeriesStatusActive {
			// Конкурентная отмена останавливает цикл, но уже созданные
			// посещения всё равно проходят через finish.
			break
		}

		occ := model.Occurrence{
			SeriesID:    series.ID,
			TenantID:    series.TenantID,
			ScheduledAt: next,
			EndsAt:      next.Add(pattern.Duration()),
			StaffID:     series.StaffID,
			LocationID:  series.LocationID,
			Status:      model.OccurrenceStatusPending,
			Generated:   true,
		}
		wasCreated, err := m.occurrences.InsertIfAbsent(ctx, &occ)
		if err != nil {
			return created, fmt.Errorf("insert occurrence: %w", err)
		}
		if wasCreated {
			created = append(created, occ)
			total++
		}

		produced++
		cursor = startOfNextDay(next)
	}

	if err := m.finish(ctx, series, pattern, cursor, created, completed); err != nil {
		return created, err
	}
	return created, nil
}

// finish фиксирует статистику, следующую дату и, если границы серии
// исчерпаны, переводит её в completed.
func (m *Materializer) finish(
	ctx context.Context,
	series *model.RecurringSeries,
	pattern recurrence.Pattern,
	cursor time.Time,
	created []model.Occurrence,
	completed bool,
) error {
	if len(created) > 0 {
		if err := m.series.IncrementStat(ctx, series.ID, repository.StatTotal, len(created)); err != nil {
			return fmt.Errorf("increment total: %w", err)
		}
		event := &model.Event{
			EventType: model.EventTypeSeriesMaterialized,
			SeriesID:  &series.ID,
			Details:   fmt.Sprintf("%d occurrences materialized", len(created)),
		}
		if err := m.events.Record(ctx, event); err != nil {
			m.log.Warn().Err(err).Str("series_id", series.ID.String()).Msg("record materialization event")
		}
	}

	if completed {
		if _, err := m.lifecycle.Transition(ctx, series.ID, ActionComplete); err != nil {
			// Серию могли отменить конкурентно — это не провал материализации.
			var stateErr *StateError
			if !errors.As(err, &stateErr) {
				return fmt.Errorf("complete series: %w", err)
			}
		}
		m.log.Info().
			Str("series_id", series.ID.String()).
			Int("created", len(created)).
			Msg("series completed by materialization")
		return nil
	}

	next, err := recurrence.NextOccurrence(pattern, cursor, series.StartDate)
	if err != nil {
		if errors.Is(err, recurrence.ErrNoUpcomingOccurrence) || errors.Is(err, recurrence.ErrUnsupportedPattern) {
			return nil
		}
		return err
	}
	// Не воскрешаем серию, отменённую пока шёл цикл.
	status, err := m.series.GetStatus(ctx, series.ID)
	if err != nil {
		return fmt.Errorf("recheck status: %w", err)
	}
	if status != model.SeriesStatusActive {
		return nil
	}
	if err := m.series.UpdateSchedulingState(ctx, series.ID, model.SeriesStatusActive, &next); err != nil {
		return fmt.Errorf("update next occurrence: %w", err)
	}

	m.log.Info().
		Str("series_id", series.ID.String()).
		Int("created", len(created)).
		Time("next_occurrence", next).
		Msg("series materialized")
	return nil
}

func startOfNextDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

func endOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 23, 59, 59, 0, t.Location())
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
