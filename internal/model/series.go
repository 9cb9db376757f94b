package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/modernmen/scheduling-core/internal/recurrence"
)

// Статус серии повторяющихся записей.
type SeriesStatus string

const (
	SeriesStatusActive    SeriesStatus = "active"
	SeriesStatusPaused    SeriesStatus = "paused"
	SeriesStatusCompleted SeriesStatus = "completed"
	SeriesStatusCancelled SeriesStatus = "cancelled"
)

// Terminal: из completed/cancelled переходов нет.
func (s SeriesStatus) Terminal() bool {
	return s == SeriesStatusCompleted || s == SeriesStatusCancelled
}

// Счётчики серии. Меняются только через события смены статуса
// посещений и явную операцию коррекции.
type SeriesStatistics struct {
	Total     int `gorm:"not null;default:0"`
	Completed int `gorm:"not null;default:0"`
	Cancelled int `gorm:"not null;default:0"`
	NoShow    int `gorm:"not null;default:0"`
}

// recurring_series — определение повторяющейся записи: паттерн + границы + статус.
// Владелец — клиент; мутируют только жизненный цикл и материализация.
type RecurringSeries struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	TenantID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	CustomerID uuid.UUID  `gorm:"type:uuid;not null;index"`
	ServiceID  uuid.UUID  `gorm:"type:uuid;not null"`
	StaffID    *uuid.UUID `gorm:"type:uuid;index"`
	LocationID *uuid.UUID `gorm:"type:uuid;index"`

	Title string `gorm:"type:varchar(255);not null"`

	// Паттерн повторения в виде JSON (см. recurrence.Pattern).
	Pattern datatypes.JSON `gorm:"type:jsonb;not null"`

	StartDate      time.Time  `gorm:"type:date;not null"`
	EndDate        *time.Time `gorm:"type:date"`
	MaxOccurrences *int

	Status SeriesStatus `gorm:"type:varchar(32);not null;default:'active';index"`

	// Дата следующего посещения; NULL тогда и только тогда,
	// когда серия в терминальном статусе.
	NextOccurrence *time.Time `gorm:"type:timestamp with time zone"`

	Statistics SeriesStatistics `gorm:"embedded;embeddedPrefix:stat_"`

	Notes string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Occurrences []Occurrence `gorm:"foreignKey:SeriesID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// SetPattern сериализует паттерн в JSON-колонку.
func (s *RecurringSeries) SetPattern(p recurrence.Pattern) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	s.Pattern = datatypes.JSON(raw)
	return nil
}

// PatternSpec разбирает JSON-колонку обратно в типизированный паттерн.
func (s *RecurringSeries) PatternSpec() (recurrence.Pattern, error) {
	var p recurrence.Pattern
	if err := json.Unmarshal(s.Pattern, &p); err != nil {
		return recurrence.Pattern{}, err
	}
	return p, nil
}
