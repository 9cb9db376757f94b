package service

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
	"github.com/modernmen/scheduling-core/internal/scheduling"
	"github.com/modernmen/scheduling-core/internal/timeclock"
)

// Стартовая пачка посещений при создании серии.
const initialBatchSize = 10

// SchedulingService — фасад движка: создание серий, материализация,
// проверка доступности, жизненный цикл и пересчёт смен.
// Вызывается внешним планировщиком (ночной проход) и по требованию.
type SchedulingService struct {
	series      repository.SeriesRepository
	events      repository.EventRepository
	clockEvents repository.ClockEventRepository

	checker      *scheduling.ConflictChecker
	materializer *scheduling.Materializer
	lifecycle    *scheduling.LifecycleManager
	reconciler   *timeclock.Reconciler

	log zerolog.Logger
	now func() time.Time
}

func NewSchedulingService(
	series repository.SeriesRepository,
	events repository.EventRepository,
	clockEvents repository.ClockEventRepository,
	checker *scheduling.ConflictChecker,
	materializer *scheduling.Materializer,
	lifecycle *scheduling.LifecycleManager,
	reconciler *timeclock.Reconciler,
	log zerolog.Logger,
) *SchedulingService {
	return &SchedulingService{
		series:       series,
		events:       events,
		clockEvents:  clockEvents,
		checker:      checker,
		materializer: materializer,
		lifecycle:    lifecycle,
		reconciler:   reconciler,
		log:          log,
		now:          time.Now,
	}
}

// ResolveNextOccurrence возвращает ближайшую дату паттерна от from.
// nil без ошибки означает "в пределах горизонта дат нет".
func (s *SchedulingService) ResolveNextOccurrence(pattern recurrence.Pattern, from time.Time) (*time.Time, error) {
	next, err := recurrence.NextOccurrence(pattern, from, from)
	if errors.Is(err, recurrence.ErrNoUpcomingOccurrence) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &next, nil
}

// CreateSeries валидирует паттерн, сохраняет серию и сразу
// материализует стартовую пачку посещений.
func (s *SchedulingService) CreateSeries(
	ctx context.Context,
	series *model.RecurringSeries,
	pattern recurrence.Pattern,
) (*model.RecurringSeries, error) {
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	if err := series.SetPattern(pattern); err != nil {
		return nil, fmt.Errorf("encode pattern: %w", err)
	}
	if series.Title == "" {
		series.Title = pattern.Describe()
	}
	series.Status = model.SeriesStatusActive

	next, err := recurrence.NextOccurrence(pattern, s.now(), series.StartDate)
	switch {
	case errors.Is(err, recurrence.ErrNoUpcomingOccurrence):
		// Паттерн целиком в прошлом — серию создавать не из чего.
		return nil, err
	case err != nil:
		return nil, err
	}
	series.NextOccurrence = &next

	if err := s.series.Create(ctx, series); err != nil {
		return nil, fmt.Errorf("create series: %w", err)
	}

	event := &model.Event{
		EventType: model.EventTypeSeriesCreated,
		SeriesID:  &series.ID,
		Details:   pattern.Describe(),
	}
	if err := s.events.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("series_id", series.ID.String()).Msg("record series created event")
	}

	created, err := s.materializer.Materialize(ctx, series.ID, initialBatchSize)
	if err != nil {
		// Серия уже сохранена; затор материализации — повод для оператора,
		// а не для отката создания.
		var stalled *scheduling.StalledError
		if errors.As(err, &stalled) {
			s.log.Warn().Err(err).Str("series_id", series.ID.String()).Msg("initial materialization stalled")
			return series, nil
		}
		return series, fmt.Errorf("initial materialization: %w", err)
	}

	s.log.Info().
		Str("series_id", series.ID.String()).
		Str("pattern", pattern.Describe()).
		Int("created", len(created)).
		Msg("series created")
	return series, nil
}

// MaterializeOccurrences создаёт недостающие посещения серии.
func (s *SchedulingService) MaterializeOccurrences(ctx context.Context, seriesID uuid.UUID, horizon int) ([]model.Occurrence, error) {
	return s.materializer.Materialize(ctx, seriesID, horizon)
}

// CheckAvailability проверяет кандидата без побочных эффектов.
func (s *SchedulingService) CheckAvailability(ctx context.Context, cand scheduling.Candidate) (scheduling.Decision, error) {
	return s.checker.Check(ctx, cand)
}

// TransitionSeries применяет действие жизненного цикла к серии.
func (s *SchedulingService) TransitionSeries(ctx context.Context, seriesID uuid.UUID, action scheduling.Action) (*model.RecurringSeries, error) {
	return s.lifecycle.Transition(ctx, seriesID, action)
}

// RecordOccurrenceOutcome фиксирует исход посещения от внешнего booking-флоу.
func (s *SchedulingService) RecordOccurrenceOutcome(ctx context.Context, occurrenceID uuid.UUID, status model.OccurrenceStatus) error {
	return s.lifecycle.RecordOutcome(ctx, occurrenceID, status)
}

// ReconcileDay пересчитывает смены сотрудника за день.
func (s *SchedulingService) ReconcileDay(ctx context.Context, staffID uuid.UUID, day time.Time) ([]model.ShiftSegment, error) {
	return s.reconciler.ReconcileDay(ctx, staffID, day)
}

// RunMaterializationSweep — ночной проход: материализация всех активных
// серий. Затор или ошибка одной серии не останавливает остальные.
func (s *SchedulingService) RunMaterializationSweep(ctx context.Context, horizon int) error {
	ids, err := s.series.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active series: %w", err)
	}

	var failed int
	for _, id := range ids {
		if _, err := s.materializer.Materialize(ctx, id, horizon); err != nil {
			failed++
			s.log.Error().Err(err).Str("series_id", id.String()).Msg("sweep: materialization failed")
		}
	}

	s.log.Info().
		Int("series", len(ids)).
		Int("failed", failed).
		Msg("materialization sweep finished")
	if failed > 0 {
		return fmt.Errorf("materialization sweep: %d of %d series failed", failed, len(ids))
	}
	return nil
}

// RunReconciliationSweep пересчитывает смены всех сотрудников,
// отметившихся за день day.
func (s *SchedulingService) RunReconciliationSweep(ctx context.Context, day time.Time) error {
	year, month, dom := day.Date()
	dayStart := time.Date(year, month, dom, 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	staffIDs, err := s.clockEvents.ListStaffWithEvents(ctx, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("list staff with events: %w", err)
	}

	var failed int
	for _, staffID := range staffIDs {
		if _, err := s.reconciler.ReconcileDay(ctx, staffID, dayStart); err != nil {
			failed++
			s.log.Error().Err(err).Str("staff_id", staffID.String()).Msg("sweep: reconciliation failed")
		}
	}

	s.log.Info().
		Str("date", dayStart.Format("2006-01-02")).
		Int("staff", len(staffIDs)).
		Int("failed", failed).
		Msg("reconciliation sweep finished")
	if failed > 0 {
		return fmt.Errorf("reconciliation sweep: %d of %d staff failed", failed, len(staffIDs))
	}
	return nil
}
