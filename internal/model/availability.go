package model

import (
	"time"

	"github.com/google/uuid"
)

// staff_schedules — рабочее окно сотрудника на день недели.
// Нет строки на день — сотрудник в этот день не работает.
type StaffSchedule struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_staff_schedules_day"`

	// 0 = воскресенье ... 6 = суббота (time.Weekday).
	Weekday int `gorm:"not null;uniqueIndex:ux_staff_schedules_day"`

	StartTime string `gorm:"type:varchar(5);not null"` // HH:MM
	EndTime   string `gorm:"type:varchar(5);not null"` // HH:MM

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// staff_time_off — утверждённый отпуск/отгул сотрудника.
// Диапазон дат включительный с обеих сторон.
type StaffTimeOff struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	StaffID  uuid.UUID `gorm:"type:uuid;not null;index"`

	StartDate time.Time `gorm:"type:date;not null"`
	EndDate   time.Time `gorm:"type:date;not null"`

	Reason string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// locations — точка обслуживания с лимитом параллельных услуг.
type Location struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`

	Name string `gorm:"type:varchar(255);not null"`

	// Максимум одновременно идущих услуг; 0 — без лимита.
	MaxConcurrentServices int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`

	Hours []LocationHours `gorm:"foreignKey:LocationID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// location_hours — часы работы точки: либо шаблон по дню недели
// (Weekday задан, SpecialDate NULL), либо переопределение на конкретную
// дату (SpecialDate задан). Переопределение имеет приоритет.
type LocationHours struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	LocationID uuid.UUID `gorm:"type:uuid;not null;index"`

	Weekday     *int       `gorm:"index"`
	SpecialDate *time.Time `gorm:"type:date;index"`

	OpenTime  string `gorm:"type:varchar(5)"` // HH:MM
	CloseTime string `gorm:"type:varchar(5)"` // HH:MM

	IsClosed bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}
