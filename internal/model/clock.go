package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Тип события табельных часов.
type ClockAction string

const (
	ClockActionIn         ClockAction = "clock_in"
	ClockActionOut        ClockAction = "clock_out"
	ClockActionBreakStart ClockAction = "break_start"
	ClockActionBreakEnd   ClockAction = "break_end"
)

// clock_events — сырые отметки прихода/ухода. Только добавление,
// после записи события не мутируются.
type ClockEvent struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID  uuid.UUID `gorm:"type:uuid;not null;index"`

	Action    ClockAction `gorm:"type:varchar(32);not null"`
	Timestamp time.Time   `gorm:"type:timestamp with time zone;not null;index"`

	// Ручная корректировка требует непустой причины.
	IsManualEntry bool   `gorm:"not null;default:false"`
	ManualReason  string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

// shift_segments — производные отрезки смен. Не источник истины:
// пересчёт за день полностью замещает прежний набор строк.
type ShiftSegment struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID  uuid.UUID `gorm:"type:uuid;not null;index"`

	Date time.Time `gorm:"type:date;not null;index"`

	ClockIn  time.Time  `gorm:"type:timestamp with time zone;not null"`
	ClockOut *time.Time `gorm:"type:timestamp with time zone"`

	BreakMinutes    int `gorm:"not null;default:0"`
	DurationMinutes int `gorm:"not null;default:0"`

	// Смена не закрыта отметкой ухода; длительность посчитана
	// до конца дня или до текущего момента.
	Incomplete bool `gorm:"not null;default:false"`

	// Список аномалий в JSON (см. timeclock.Anomaly).
	Anomalies datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
