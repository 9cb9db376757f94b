package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/modernmen/scheduling-core/internal/model"
)

// Статусы, в которых посещение занимает время сотрудника и место.
var activeOccurrenceStatuses = []model.OccurrenceStatus{
	model.OccurrenceStatusPending,
	model.OccurrenceStatusConfirmed,
}

type OccurrenceRepository interface {
	// Вставить посещение, если пары (series_id, scheduled_at) ещё нет.
	// Дубль — не ошибка: возвращается created=false.
	InsertIfAbsent(ctx context.Context, occ *model.Occurrence) (created bool, err error)
	// Найти посещение по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Occurrence, error)
	// Обновить статус посещения.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OccurrenceStatus) error
	// Активные посещения сотрудника, пересекающие окно [from, to).
	FindOverlapping(ctx context.Context, staffID uuid.UUID, from, to time.Time) ([]model.Occurrence, error)
	// Сколько активных посещений идёт в точке в момент at.
	CountActiveAtLocation(ctx context.Context, locationID uuid.UUID, at time.Time) (int64, error)
	// Сколько посещений уже материализовано у серии.
	CountBySeries(ctx context.Context, seriesID uuid.UUID) (int64, error)
	// Отменить будущие ещё не начавшиеся посещения серии.
	// Прошедшие и завершённые не трогаются. Возвращает число отменённых.
	CancelFuture(ctx context.Context, seriesID uuid.UUID, from time.Time) (int64, error)
}

type GormOccurrenceRepository struct {
	db *gorm.DB
}

func NewGormOccurrenceRepository(db *gorm.DB) *GormOccurrenceRepository {
	return &GormOccurrenceRepository{db: db}
}

func (r *GormOccurrenceRepository) InsertIfAbsent(ctx context.Context, occ *model.Occurrence) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "series_id"}, {Name: "scheduled_at"}},
			DoNothing: true,
		}).
		Create(occ)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormOccurrenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Occurrence, error) {
	var occ model.Occurrence
	if err := r.db.WithContext(ctx).First(&occ, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &occ, nil
}

func (r *GormOccurrenceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OccurrenceStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.Occurrence{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

func (r *GormOccurrenceRepository) FindOverlapping(
	ctx context.Context,
	staffID uuid.UUID,
	from, to time.Time,
) ([]model.Occurrence, error) {
	var occs []model.Occurrence
	// Полуоткрытые интервалы: [a, b) и [c, d) пересекаются при a < d && c < b.
	err := r.db.WithContext(ctx).
		Where("staff_id = ?", staffID).
		Where("status IN ?", activeOccurrenceStatuses).
		Where("scheduled_at < ? AND ends_at > ?", to, from).
		Order("scheduled_at ASC").
		Find(&occs).Error
	if err != nil {
		return nil, err
	}
	return occs, nil
}

func (r *GormOccurrenceRepository) CountActiveAtLocation(
	ctx context.Context,
	locationID uuid.UUID,
	at time.Time,
) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Occurrence{}).
		Where("location_id = ?", locationID).
		Where("status IN ?", activeOccurrenceStatuses).
		Where("scheduled_at <= ? AND ends_at > ?", at, at).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *GormOccurrenceRepository) CountBySeries(ctx context.Context, seriesID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Occurrence{}).
		Where("series_id = ?", seriesID).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *GormOccurrenceRepository) CancelFuture(
	ctx context.Context,
	seriesID uuid.UUID,
	from time.Time,
) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Occurrence{}).
		Where("series_id = ?", seriesID).
		Where("scheduled_at > ?", from).
		Where("status IN ?", activeOccurrenceStatuses).
		Update("status", model.OccurrenceStatusCancelled)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
