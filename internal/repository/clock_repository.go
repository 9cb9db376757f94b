package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modernmen/scheduling-core/internal/model"
)

// ErrManualReasonRequired — ручная отметка без причины отклоняется
// на границе хранилища, до записи.
var ErrManualReasonRequired = errors.New("clock event: manual entry requires a reason")

type ClockEventRepository interface {
	// Добавить отметку. Хранилище append-only, обновлений нет.
	Append(ctx context.Context, event *model.ClockEvent) error
	// Отметки сотрудника за день [dayStart, dayEnd) по возрастанию времени.
	ListDay(ctx context.Context, staffID uuid.UUID, dayStart, dayEnd time.Time) ([]model.ClockEvent, error)
	// Сотрудники, у которых есть отметки за день — для прохода пересчёта.
	ListStaffWithEvents(ctx context.Context, dayStart, dayEnd time.Time) ([]uuid.UUID, error)
}

type ShiftSegmentRepository interface {
	// Полностью заменить производные отрезки сотрудника за день.
	// Замена целиком делает повторный пересчёт идемпотентным.
	ReplaceForDay(ctx context.Context, staffID uuid.UUID, day time.Time, segments []model.ShiftSegment) error
	// Отрезки сотрудника за день.
	ListForDay(ctx context.Context, staffID uuid.UUID, day time.Time) ([]model.ShiftSegment, error)
}

type GormClockEventRepository struct {
	db *gorm.DB
}

func NewGormClockEventRepository(db *gorm.DB) *GormClockEventRepository {
	return &GormClockEventRepository{db: db}
}

func (r *GormClockEventRepository) Append(ctx context.Context, event *model.ClockEvent) error {
	if event.IsManualEntry && strings.TrimSpace(event.ManualReason) == "" {
		return ErrManualReasonRequired
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormClockEventRepository) ListDay(
	ctx context.Context,
	staffID uuid.UUID,
	dayStart, dayEnd time.Time,
) ([]model.ClockEvent, error) {
	var events []model.ClockEvent
	err := r.db.WithContext(ctx).
		Where("staff_id = ?", staffID).
		Where("timestamp >= ? AND timestamp < ?", dayStart, dayEnd).
		Order("timestamp ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *GormClockEventRepository) ListStaffWithEvents(
	ctx context.Context,
	dayStart, dayEnd time.Time,
) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.ClockEvent{}).
		Where("timestamp >= ? AND timestamp < ?", dayStart, dayEnd).
		Distinct().
		Pluck("staff_id", &ids).
		Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type GormShiftSegmentRepository struct {
	db *gorm.DB
}

func NewGormShiftSegmentRepository(db *gorm.DB) *GormShiftSegmentRepository {
	return &GormShiftSegmentRepository{db: db}
}

func (r *GormShiftSegmentRepository) ReplaceForDay(
	ctx context.Context,
	staffID uuid.UUID,
	day time.Time,
	segments []model.ShiftSegment,
) error {
	day = truncateToDay(day)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("staff_id = ? AND date = ?", staffID, day).
			Delete(&model.ShiftSegment{}).Error; err != nil {
			return err
		}
		if len(segments) == 0 {
			return nil
		}
		return tx.Create(&segments).Error
	})
}

func (r *GormShiftSegmentRepository) ListForDay(
	ctx context.Context,
	staffID uuid.UUID,
	day time.Time,
) ([]model.ShiftSegment, error) {
	var segments []model.ShiftSegment
	err := r.db.WithContext(ctx).
		Where("staff_id = ? AND date = ?", staffID, truncateToDay(day)).
		Order("clock_in ASC").
		Find(&segments).Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}
