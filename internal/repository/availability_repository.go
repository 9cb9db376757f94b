package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modernmen/scheduling-core/internal/model"
)

// Рабочее окно на конкретную дату. nil означает "закрыто/не работает".
type DayWindow struct {
	Open  time.Time
	Close time.Time
}

// Covers: окно покрывает интервал [start, end).
func (w *DayWindow) Covers(start, end time.Time) bool {
	if w == nil {
		return false
	}
	return !start.Before(w.Open) && !end.After(w.Close)
}

// AvailabilityStore — календарный коллаборатор проверки конфликтов:
// часы точек, график сотрудников, отпуска.
type AvailabilityStore interface {
	// Часы работы точки на дату; nil — точка закрыта.
	LocationHours(ctx context.Context, locationID uuid.UUID, date time.Time) (*DayWindow, error)
	// Лимит параллельных услуг точки; 0 — без лимита.
	LocationCapacity(ctx context.Context, locationID uuid.UUID) (int, error)
	// Рабочее окно сотрудника на дату; nil — не рабочий день.
	StaffHours(ctx context.Context, staffID uuid.UUID, date time.Time) (*DayWindow, error)
	// Отпуска сотрудника, пересекающие диапазон дат [from, to].
	StaffTimeOff(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]model.StaffTimeOff, error)
}

type GormAvailabilityRepository struct {
	db *gorm.DB
}

func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

func (r *GormAvailabilityRepository) LocationHours(
	ctx context.Context,
	locationID uuid.UUID,
	date time.Time,
) (*DayWindow, error) {
	day := truncateToDay(date)

	// Переопределение на конкретную дату важнее недельного шаблона.
	var hours model.LocationHours
	err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Where("special_date = ?", day).
		Take(&hours).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.db.WithContext(ctx).
			Where("location_id = ?", locationID).
			Where("special_date IS NULL AND weekday = ?", int(date.Weekday())).
			Take(&hours).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if hours.IsClosed {
		return nil, nil
	}

	return windowOnDate(day, hours.OpenTime, hours.CloseTime)
}

func (r *GormAvailabilityRepository) LocationCapacity(ctx context.Context, locationID uuid.UUID) (int, error) {
	var loc model.Location
	if err := r.db.WithContext(ctx).First(&loc, "id = ?", locationID).Error; err != nil {
		return 0, err
	}
	return loc.MaxConcurrentServices, nil
}

func (r *GormAvailabilityRepository) StaffHours(
	ctx context.Context,
	staffID uuid.UUID,
	date time.Time,
) (*DayWindow, error) {
	var sched model.StaffSchedule
	err := r.db.WithContext(ctx).
		Where("staff_id = ?", staffID).
		Where("weekday = ?", int(date.Weekday())).
		Take(&sched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return windowOnDate(truncateToDay(date), sched.StartTime, sched.EndTime)
}

func (r *GormAvailabilityRepository) StaffTimeOff(
	ctx context.Context,
	staffID uuid.UUID,
	from, to time.Time,
) ([]model.StaffTimeOff, error) {
	var periods []model.StaffTimeOff
	err := r.db.WithContext(ctx).
		Where("staff_id = ?", staffID).
		Where("start_date <= ? AND end_date >= ?", to, from).
		Order("start_date ASC").
		Find(&periods).Error
	if err != nil {
		return nil, err
	}
	return periods, nil
}

// windowOnDate строит окно из дат и границ "HH:MM".
func windowOnDate(day time.Time, open, close string) (*DayWindow, error) {
	openAt, err := clockOnDate(day, open)
	if err != nil {
		return nil, fmt.Errorf("open time: %w", err)
	}
	closeAt, err := clockOnDate(day, close)
	if err != nil {
		return nil, fmt.Errorf("close time: %w", err)
	}
	if !closeAt.After(openAt) {
		return nil, fmt.Errorf("invalid hours window %s-%s", open, close)
	}
	return &DayWindow{Open: openAt, Close: closeAt}, nil
}

func clockOnDate(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
