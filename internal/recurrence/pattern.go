package recurrence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Ошибки валидации паттерна повторения.
var (
	ErrInvalidInterval   = errors.New("recurrence: interval must be positive")
	ErrEmptyDaysOfWeek   = errors.New("recurrence: days of week must not be empty")
	ErrInvalidDayOfMonth = errors.New("recurrence: day of month must be in 1..31")
	ErrInvalidTimeOfDay  = errors.New("recurrence: time of day must be in HH:MM format")
	ErrInvalidDuration   = errors.New("recurrence: duration must be positive")
	ErrInvalidCustomDate = errors.New("recurrence: custom date must be in YYYY-MM-DD format")
	ErrUnknownFrequency  = errors.New("recurrence: unknown frequency")
)

// Частота повторения серии.
type Frequency string

const (
	FreqDaily    Frequency = "daily"
	FreqWeekly   Frequency = "weekly"
	FreqBiweekly Frequency = "biweekly"
	FreqMonthly  Frequency = "monthly"
	FreqCustom   Frequency = "custom"
)

// Weekday сериализуется в JSON строковым именем дня ("monday" и т.д.),
// чтобы сохранённые паттерны оставались читаемыми в админке.
type Weekday time.Weekday

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (w Weekday) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(time.Weekday(w).String()))
}

func (w *Weekday) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	d, ok := weekdayNames[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("recurrence: unknown weekday %q", name)
	}
	*w = Weekday(d)
	return nil
}

// Pattern — размеченный вариант правила повторения.
// Для каждой частоты обязателен свой набор полей, никаких молчаливых
// fallback-ов: невалидная комбинация отклоняется при валидации.
type Pattern struct {
	Frequency Frequency `json:"frequency"`
	// Шаг повторения: каждые Interval дней/недель/месяцев.
	Interval int `json:"interval"`
	// Дни недели — только для weekly/biweekly.
	DaysOfWeek []Weekday `json:"daysOfWeek,omitempty"`
	// День месяца — только для monthly.
	DayOfMonth int `json:"dayOfMonth,omitempty"`
	// Явный список дат (YYYY-MM-DD) — только для custom.
	CustomDates []string `json:"customDates,omitempty"`
	// Время начала в формате HH:MM.
	TimeOfDay string `json:"timeOfDay"`
	// Длительность одного посещения в минутах.
	DurationMinutes int `json:"duration"`
}

// Validate проверяет паттерн до любых побочных эффектов.
func (p Pattern) Validate() error {
	if p.Interval <= 0 {
		return ErrInvalidInterval
	}
	if p.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if _, _, err := p.clockTime(); err != nil {
		return err
	}

	switch p.Frequency {
	case FreqDaily:
		return nil
	case FreqWeekly, FreqBiweekly:
		if len(p.DaysOfWeek) == 0 {
			return ErrEmptyDaysOfWeek
		}
		return nil
	case FreqMonthly:
		if p.DayOfMonth < 1 || p.DayOfMonth > 31 {
			return ErrInvalidDayOfMonth
		}
		return nil
	case FreqCustom:
		for _, d := range p.CustomDates {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return fmt.Errorf("%w: %q", ErrInvalidCustomDate, d)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, p.Frequency)
	}
}

// Duration возвращает длительность одного посещения.
func (p Pattern) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// Describe — короткое человекочитаемое описание паттерна
// для заголовков серий и аудита.
func (p Pattern) Describe() string {
	switch p.Frequency {
	case FreqDaily:
		if p.Interval == 1 {
			return fmt.Sprintf("Daily at %s", p.TimeOfDay)
		}
		return fmt.Sprintf("Every %d days at %s", p.Interval, p.TimeOfDay)
	case FreqWeekly, FreqBiweekly:
		names := make([]string, 0, len(p.DaysOfWeek))
		for _, d := range p.DaysOfWeek {
			names = append(names, time.Weekday(d).String())
		}
		unit := "Weekly"
		if p.Frequency == FreqBiweekly {
			unit = "Biweekly"
		}
		return fmt.Sprintf("%s on %s at %s", unit, strings.Join(names, ", "), p.TimeOfDay)
	case FreqMonthly:
		return fmt.Sprintf("Monthly on day %d at %s", p.DayOfMonth, p.TimeOfDay)
	case FreqCustom:
		return fmt.Sprintf("Custom schedule (%d dates) at %s", len(p.CustomDates), p.TimeOfDay)
	default:
		return string(p.Frequency)
	}
}

// clockTime разбирает TimeOfDay ("HH:MM") на часы и минуты.
func (p Pattern) clockTime() (hour, min int, err error) {
	t, err := time.Parse("15:04", p.TimeOfDay)
	if err != nil {
		return 0, 0, ErrInvalidTimeOfDay
	}
	return t.Hour(), t.Minute(), nil
}

// weeks возвращает шаг в неделях для weekly/biweekly.
// Biweekly с интервалом по умолчанию означает "каждые две недели".
func (p Pattern) weeks() int {
	if p.Frequency == FreqBiweekly && p.Interval == 1 {
		return 2
	}
	return p.Interval
}

func (p Pattern) hasWeekday(d time.Weekday) bool {
	for _, w := range p.DaysOfWeek {
		if time.Weekday(w) == d {
			return true
		}
	}
	return false
}
