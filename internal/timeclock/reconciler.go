package timeclock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/modernmen/scheduling-core/internal/model"
	"github.com/modernmen/scheduling-core/internal/repository"
)

// Reconciler пересчитывает производные отрезки смен из сырых отметок.
// Пересчёт за день полностью замещает прежний набор отрезков,
// поэтому повторные запуски идемпотентны.
type Reconciler struct {
	events   repository.ClockEventRepository
	segments repository.ShiftSegmentRepository

	log zerolog.Logger
	now func() time.Time
}

func NewReconciler(
	events repository.ClockEventRepository,
	segments repository.ShiftSegmentRepository,
	log zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		events:   events,
		segments: segments,
		log:      log,
		now:      time.Now,
	}
}

// ReconcileDay пересчитывает смены сотрудника за календарный день
// (в таймзоне переданной даты) и возвращает отрезки с аномалиями.
func (r *Reconciler) ReconcileDay(ctx context.Context, staffID uuid.UUID, day time.Time) ([]model.ShiftSegment, error) {
	year, month, dom := day.Date()
	dayStart := time.Date(year, month, dom, 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := r.events.ListDay(ctx, staffID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list clock events: %w", err)
	}

	built := BuildSegments(events, dayEnd, r.now())

	rows := make([]model.ShiftSegment, 0, len(built))
	for _, seg := range built {
		row, err := segmentRow(staffID, tenantOf(events), dayStart, seg)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	if err := r.segments.ReplaceForDay(ctx, staffID, dayStart, rows); err != nil {
		return nil, fmt.Errorf("replace segments: %w", err)
	}

	r.log.Info().
		Str("staff_id", staffID.String()).
		Str("date", dayStart.Format("2006-01-02")).
		Int("events", len(events)).
		Int("segments", len(rows)).
		Dur("total", TotalDuration(built)).
		Msg("day reconciled")

	return rows, nil
}

// segmentRow переводит вычисленный отрезок в строку хранилища.
func segmentRow(staffID, tenantID uuid.UUID, day time.Time, seg Segment) (model.ShiftSegment, error) {
	anomalies := make([]string, 0, len(seg.Anomalies))
	for _, a := range seg.Anomalies {
		anomalies = append(anomalies, string(a))
	}
	raw, err := json.Marshal(anomalies)
	if err != nil {
		return model.ShiftSegment{}, fmt.Errorf("marshal anomalies: %w", err)
	}

	return model.ShiftSegment{
		TenantID:        tenantID,
		StaffID:         staffID,
		Date:            day,
		ClockIn:         seg.ClockIn,
		ClockOut:        seg.ClockOut,
		BreakMinutes:    int(BreakDuration(&seg).Minutes()),
		DurationMinutes: int(seg.Duration.Minutes()),
		Incomplete:      seg.Incomplete,
		Anomalies:       datatypes.JSON(raw),
	}, nil
}

func tenantOf(events []model.ClockEvent) uuid.UUID {
	if len(events) == 0 {
		return uuid.Nil
	}
	return events[0].TenantID
}
