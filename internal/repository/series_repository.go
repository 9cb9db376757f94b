package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modernmen/scheduling-core/internal/model"
)

// Колонка счётчика серии для атомарного инкремента.
type StatColumn string

const (
	StatTotal     StatColumn = "stat_total"
	StatCompleted StatColumn = "stat_completed"
	StatCancelled StatColumn = "stat_cancelled"
	StatNoShow    StatColumn = "stat_no_show"
)

type SeriesRepository interface {
	// Создать серию.
	Create(ctx context.Context, series *model.RecurringSeries) error
	// Найти серию по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringSeries, error)
	// Текущий статус серии — дешёвая проверка внутри цикла материализации.
	GetStatus(ctx context.Context, id uuid.UUID) (model.SeriesStatus, error)
	// Обновить статус и дату следующего посещения одним апдейтом.
	UpdateSchedulingState(ctx context.Context, id uuid.UUID, status model.SeriesStatus, next *time.Time) error
	// Атомарно увеличить счётчик статистики.
	IncrementStat(ctx context.Context, id uuid.UUID, col StatColumn, delta int) error
	// Явная коррекция счётчиков — единственный путь мутации помимо инкрементов.
	SetStatistics(ctx context.Context, id uuid.UUID, stats model.SeriesStatistics) error
	// ID всех активных серий — для ночного прохода материализации.
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

type GormSeriesRepository struct {
	db *gorm.DB
}

func NewGormSeriesRepository(db *gorm.DB) *GormSeriesRepository {
	return &GormSeriesRepository{db: db}
}

func (r *GormSeriesRepository) Create(ctx context.Context, series *model.RecurringSeries) error {
	return r.db.WithContext(ctx).Create(series).Error
}

func (r *GormSeriesRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringSeries, error) {
	var s model.RecurringSeries
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSeriesRepository) GetStatus(ctx context.Context, id uuid.UUID) (model.SeriesStatus, error) {
	var row struct {
		Status model.SeriesStatus
	}
	err := r.db.WithContext(ctx).
		Model(&model.RecurringSeries{}).
		Select("status").
		Where("id = ?", id).
		Take(&row).
		Error
	if err != nil {
		return "", err
	}
	return row.Status, nil
}

func (r *GormSeriesRepository) UpdateSchedulingState(
	ctx context.Context,
	id uuid.UUID,
	status model.SeriesStatus,
	next *time.Time,
) error {
	update := map[string]any{
		"status":          status,
		"next_occurrence": next,
	}
	return r.db.WithContext(ctx).
		Model(&model.RecurringSeries{}).
		Where("id = ?", id).
		Updates(update).
		Error
}

func (r *GormSeriesRepository) IncrementStat(ctx context.Context, id uuid.UUID, col StatColumn, delta int) error {
	return r.db.WithContext(ctx).
		Model(&model.RecurringSeries{}).
		Where("id = ?", id).
		UpdateColumn(string(col), gorm.Expr(string(col)+" + ?", delta)).
		Error
}

func (r *GormSeriesRepository) SetStatistics(ctx context.Context, id uuid.UUID, stats model.SeriesStatistics) error {
	update := map[string]any{
		"stat_total":     stats.Total,
		"stat_completed": stats.Completed,
		"stat_cancelled": stats.Cancelled,
		"stat_no_show":   stats.NoShow,
	}
	return r.db.WithContext(ctx).
		Model(&model.RecurringSeries{}).
		Where("id = ?", id).
		Updates(update).
		Error
}

func (r *GormSeriesRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.RecurringSeries{}).
		Where("status = ?", model.SeriesStatusActive).
		Order("created_at ASC").
		Pluck("id", &ids).
		Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
