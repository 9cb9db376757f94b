package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/modernmen/scheduling-core/internal/model"
	"github.com/modernmen/scheduling-core/internal/repository"
)

// Действие над жизненным циклом серии.
type Action string

const (
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

// StateError — недопустимый переход. Никогда не "подправляется" молча.
type StateError struct {
	SeriesID uuid.UUID
	From     model.SeriesStatus
	Action   Action
}

func (e *StateError) Error() string {
	return fmt.Sprintf("series %s: cannot %s from status %q", e.SeriesID, e.Action, e.From)
}

// Допустимые переходы: active <-> paused, active|paused -> cancelled,
// active -> completed (автоматически). Терминальные статусы — тупики.
var transitions = map[model.SeriesStatus]map[Action]model.SeriesStatus{
	model.SeriesStatusActive: {
		ActionPause:    model.SeriesStatusPaused,
		ActionCancel:   model.SeriesStatusCancelled,
		ActionComplete: model.SeriesStatusCompleted,
	},
	model.SeriesStatusPaused: {
		ActionResume: model.SeriesStatusActive,
		ActionCancel: model.SeriesStatusCancelled,
	},
}

var actionEvents = map[Action]model.EventType{
	ActionPause:    model.EventTypeSeriesPaused,
	ActionResume:   model.EventTypeSeriesResumed,
	ActionCancel:   model.EventTypeSeriesCancelled,
	ActionComplete: model.EventTypeSeriesCompleted,
}

// LifecycleManager управляет статусом серии и её счётчиками.
// Единственная точка мутации того и другого.
type LifecycleManager struct {
	series      repository.SeriesRepository
	occurrences repository.OccurrenceRepository
	events      repository.EventRepository

	log zerolog.Logger
	now func() time.Time
}

func NewLifecycleManager(
	series repository.SeriesRepository,
	occurrences repository.OccurrenceRepository,
	events repository.EventRepository,
	log zerolog.Logger,
) *LifecycleManager {
	return &LifecycleManager{
		series:      series,
		occurrences: occurrences,
		events:      events,
		log:         log,
		now:         time.Now,
	}
}

// Transition применяет действие к серии.
func (l *LifecycleManager) Transition(ctx context.Context, seriesID uuid.UUID, action Action) (*model.RecurringSeries, error) {
	series, err := l.series.GetByID(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	next, legal := transitions[series.Status][action]
	if !legal {
		return nil, &StateError{SeriesID: seriesID, From: series.Status, Action: action}
	}

	// Терминальный статус обнуляет дату следующего посещения;
	// пауза сохраняет её как есть.
	nextOccurrence := series.NextOccurrence
	if next.Terminal() {
		nextOccurrence = nil
	}

	if err := l.series.UpdateSchedulingState(ctx, seriesID, next, nextOccurrence); err != nil {
		return nil, fmt.Errorf("update series state: %w", err)
	}

	cancelled := int64(0)
	if action == ActionCancel {
		// Каскад: будущие не начавшиеся посещения отменяются,
		// прошедшие и их статистика остаются как были.
		cancelled, err = l.occurrences.CancelFuture(ctx, seriesID, l.now())
		if err != nil {
			return nil, fmt.Errorf("cancel future occurrences: %w", err)
		}
	}

	l.recordEvent(ctx, seriesID, actionEvents[action],
		fmt.Sprintf("status %s -> %s, %d future occurrences cancelled", series.Status, next, cancelled))

	l.log.Info().
		Str("series_id", seriesID.String()).
		Str("action", string(action)).
		Str("from", string(series.Status)).
		Str("to", string(next)).
		Int64("cancelled", cancelled).
		Msg("series transition")

	series.Status = next
	series.NextOccurrence = nextOccurrence
	return series, nil
}

// RecordOutcome фиксирует исход посещения, о котором сообщил внешний
// booking-флоу, и увеличивает соответствующий счётчик серии ровно один раз.
func (l *LifecycleManager) RecordOutcome(ctx context.Context, occurrenceID uuid.UUID, status model.OccurrenceStatus) error {
	var col repository.StatColumn
	switch status {
	case model.OccurrenceStatusCompleted:
		col = repository.StatCompleted
	case model.OccurrenceStatusCancelled:
		col = repository.StatCancelled
	case model.OccurrenceStatusNoShow:
		col = repository.StatNoShow
	default:
		return fmt.Errorf("occurrence %s: status %q is not a reportable outcome", occurrenceID, status)
	}

	occ, err := l.occurrences.GetByID(ctx, occurrenceID)
	if err != nil {
		return fmt.Errorf("load occurrence: %w", err)
	}
	// Повторное сообщение того же исхода счётчик не двигает.
	if occ.Status == status {
		return nil
	}

	if err := l.occurrences.UpdateStatus(ctx, occurrenceID, status); err != nil {
		return fmt.Errorf("update occurrence status: %w", err)
	}
	if err := l.series.IncrementStat(ctx, occ.SeriesID, col, 1); err != nil {
		return fmt.Errorf("increment series stat: %w", err)
	}

	event := &model.Event{
		EventType:    model.EventTypeOccurrenceOutcome,
		SeriesID:     &occ.SeriesID,
		OccurrenceID: &occ.ID,
		Details:      fmt.Sprintf("occurrence %s -> %s", occ.Status, status),
	}
	if err := l.events.Record(ctx, event); err != nil {
		l.log.Warn().Err(err).Str("occurrence_id", occurrenceID.String()).Msg("record outcome event")
	}
	return nil
}

// CorrectStatistics — явная коррекция счётчиков оператором.
func (l *LifecycleManager) CorrectStatistics(ctx context.Context, seriesID uuid.UUID, stats model.SeriesStatistics) error {
	if err := l.series.SetStatistics(ctx, seriesID, stats); err != nil {
		return fmt.Errorf("set statistics: %w", err)
	}
	l.log.Info().Str("series_id", seriesID.String()).Msg("series statistics corrected")
	return nil
}

func (l *LifecycleManager) recordEvent(ctx context.Context, seriesID uuid.UUID, eventType model.EventType, details string) {
	event := &model.Event{
		EventType: eventType,
		SeriesID:  &seriesID,
		Details:   details,
	}
	if err := l.events.Record(ctx, event); err != nil {
		// Аудит не должен ронять основной поток.
		l.log.Warn().Err(err).Str("series_id", seriesID.String()).Msg("record audit event")
	}
}
