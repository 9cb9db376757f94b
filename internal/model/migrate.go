package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей планировщика.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&RecurringSeries{},
		&Occurrence{},
		&StaffSchedule{},
		&StaffTimeOff{},
		&Location{},
		&LocationHours{},
		&ClockEvent{},
		&ShiftSegment{},
		&Event{},
	)
}
