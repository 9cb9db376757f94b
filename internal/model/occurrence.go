package model

import (
	"time"

	"github.com/google/uuid"
)

// Статус конкретного посещения.
type OccurrenceStatus string

const (
	OccurrenceStatusPending   OccurrenceStatus = "pending"
	OccurrenceStatusConfirmed OccurrenceStatus = "confirmed"
	OccurrenceStatusCompleted OccurrenceStatus = "completed"
	OccurrenceStatusCancelled OccurrenceStatus = "cancelled"
	OccurrenceStatusNoShow    OccurrenceStatus = "no_show"
)

// occurrences — одно конкретное посещение, порождённое серией.
// Уникальность (series_id, scheduled_at) — единственная защита
// от дублей при конкурентной материализации.
type Occurrence struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	SeriesID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_occurrences_series_time"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`

	ScheduledAt time.Time `gorm:"type:timestamp with time zone;not null;index;uniqueIndex:ux_occurrences_series_time"`
	EndsAt      time.Time `gorm:"type:timestamp with time zone;not null"`

	StaffID    *uuid.UUID `gorm:"type:uuid;index"`
	LocationID *uuid.UUID `gorm:"type:uuid;index"`

	Status OccurrenceStatus `gorm:"type:varchar(32);not null;default:'pending';index"`

	// Признак автоматической генерации из серии.
	Generated bool `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Series *RecurringSeries `gorm:"foreignKey:SeriesID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
