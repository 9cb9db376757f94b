package model

import (
	"time"

	"github.com/google/uuid"
)

// Тип события аудита планировщика.
type EventType string

const (
	EventTypeSeriesCreated      EventType = "series_created"
	EventTypeSeriesMaterialized EventType = "series_materialized"
	EventTypeSeriesPaused       EventType = "series_paused"
	EventTypeSeriesResumed      EventType = "series_resumed"
	EventTypeSeriesCancelled    EventType = "series_cancelled"
	EventTypeSeriesCompleted    EventType = "series_completed"
	EventTypeOccurrenceOutcome  EventType = "occurrence_outcome"
)

// events — события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`

	SeriesID     *uuid.UUID `gorm:"type:uuid;index"`
	OccurrenceID *uuid.UUID `gorm:"type:uuid;index"`

	Details string `gorm:"type:text"`
}
