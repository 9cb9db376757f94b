package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/modernmen/scheduling-core/internal/repository"
)

// Причина конфликта кандидата с календарями.
type ConflictReason string

const (
	ConflictOutsideBusinessHours ConflictReason = "outside_business_hours"
	ConflictStaffUnavailable     ConflictReason = "staff_unavailable"
	ConflictStaffTimeOff         ConflictReason = "staff_time_off"
	ConflictDoubleBooked         ConflictReason = "double_booked"
	ConflictCapacityExceeded     ConflictReason = "capacity_exceeded"
)

// Кандидат на посещение: кого, где и когда хотим записать.
type Candidate struct {
	TenantID        uuid.UUID
	StaffID         uuid.UUID
	LocationID      uuid.UUID
	Start           time.Time
	DurationMinutes int
}

func (c Candidate) End() time.Time {
	return c.Start.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// Результат проверки: либо Ok, либо первый найденный конфликт.
type Decision struct {
	OK     bool
	Reason ConflictReason
}

func ok() Decision                       { return Decision{OK: true} }
func conflict(r ConflictReason) Decision { return Decision{Reason: r} }

// ConflictChecker проверяет кандидата против часов точки, графика
// сотрудника, отпусков, существующих посещений и лимита точки.
// Только чтение, побочных эффектов нет — можно звать спекулятивно.
type ConflictChecker struct {
	availability repository.AvailabilityStore
	occurrences  repository.OccurrenceRepository
}

func NewConflictChecker(
	availability repository.AvailabilityStore,
	occurrences repository.OccurrenceRepository,
) *ConflictChecker {
	return &ConflictChecker{availability: availability, occurrences: occurrences}
}

// Check выполняет проверки по порядку и останавливается на первом провале.
// Ошибки хранилища возвращаются как ошибки, а не как конфликты.
func (c *ConflictChecker) Check(ctx context.Context, cand Candidate) (Decision, error) {
	start, end := cand.Start, cand.End()

	// 1. Часы работы точки покрывают окно.
	locWindow, err := c.availability.LocationHours(ctx, cand.LocationID, start)
	if err != nil {
		return Decision{}, err
	}
	if !locWindow.Covers(start, end) {
		return conflict(ConflictOutsideBusinessHours), nil
	}

	// 2-4. Персональные проверки — только при назначенном сотруднике.
	// Серию без предпочтительного мастера ограничивает одна точка:
	// мастера назначит booking-флоу при подтверждении.
	if cand.StaffID != uuid.Nil {
		// 2. Рабочее окно сотрудника покрывает то же окно.
		staffWindow, err := c.availability.StaffHours(ctx, cand.StaffID, start)
		if err != nil {
			return Decision{}, err
		}
		if !staffWindow.Covers(start, end) {
			return conflict(ConflictStaffUnavailable), nil
		}

		// 3. Отпуска сотрудника не пересекают окно.
		timeOff, err := c.availability.StaffTimeOff(ctx, cand.StaffID, start, end)
		if err != nil {
			return Decision{}, err
		}
		if len(timeOff) > 0 {
			return conflict(ConflictStaffTimeOff), nil
		}

		// 4. Нет активных посещений сотрудника, пересекающих окно.
		overlapping, err := c.occurrences.FindOverlapping(ctx, cand.StaffID, start, end)
		if err != nil {
			return Decision{}, err
		}
		if len(overlapping) > 0 {
			return conflict(ConflictDoubleBooked), nil
		}
	}

	// 5. Лимит параллельных услуг точки на момент старта.
	capacity, err := c.availability.LocationCapacity(ctx, cand.LocationID)
	if err != nil {
		return Decision{}, err
	}
	if capacity > 0 {
		running, err := c.occurrences.CountActiveAtLocation(ctx, cand.LocationID, start)
		if err != nil {
			return Decision{}, err
		}
		if running >= int64(capacity) {
			return conflict(ConflictCapacityExceeded), nil
		}
	}

	return ok(), nil
}
