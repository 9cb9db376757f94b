package recurrence

import (
	"errors"
	"sort"
	"time"
)

// Ошибки резолвера.
var (
	// ErrNoUpcomingOccurrence — в пределах горизонта поиска подходящей даты нет.
	ErrNoUpcomingOccurrence = errors.New("recurrence: no upcoming occurrence within horizon")
	// ErrUnsupportedPattern — custom-паттерн без явного списка дат:
	// резолвер никогда не угадывает даты сам.
	ErrUnsupportedPattern = errors.New("recurrence: custom pattern requires explicit dates")
)

// DefaultHorizonYears ограничивает поиск следующей даты.
// Обязательная граница: без неё кривой паттерн уводит поиск в бесконечность.
const DefaultHorizonYears = 2

// NextOccurrence возвращает ближайшую дату паттерна, не раньшую
// max(from, startDate). Сравнение идёт на уровне календарных дат,
// время начала (TimeOfDay) накладывается на найденную дату.
func NextOccurrence(p Pattern, from, startDate time.Time) (time.Time, error) {
	if err := p.Validate(); err != nil {
		return time.Time{}, err
	}

	loc := startDate.Location()
	bound := dateOnly(from.In(loc))
	if sd := dateOnly(startDate); sd.After(bound) {
		bound = sd
	}
	horizon := bound.AddDate(DefaultHorizonYears, 0, 0)

	var (
		day time.Time
		err error
	)
	switch p.Frequency {
	case FreqDaily:
		day, err = nextDaily(p, bound, dateOnly(startDate), horizon)
	case FreqWeekly, FreqBiweekly:
		day, err = nextWeekly(p, bound)
	case FreqMonthly:
		day, err = nextMonthly(p, bound, dateOnly(startDate), horizon)
	case FreqCustom:
		day, err = nextCustom(p, bound, loc)
	default:
		return time.Time{}, ErrUnknownFrequency
	}
	if err != nil {
		return time.Time{}, err
	}

	hh, mm, err := p.clockTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, loc), nil
}

// nextDaily: startDate + k*Interval дней, минимальное k с датой >= bound.
func nextDaily(p Pattern, bound, anchor, horizon time.Time) (time.Time, error) {
	cur := anchor
	for cur.Before(bound) {
		cur = cur.AddDate(0, 0, p.Interval)
	}
	if cur.After(horizon) {
		return time.Time{}, ErrNoUpcomingOccurrence
	}
	return cur, nil
}

// nextWeekly: перебор дат в окне [bound, bound + weeks недель),
// берётся ближайшая с подходящим днём недели.
func nextWeekly(p Pattern, bound time.Time) (time.Time, error) {
	limit := 7 * p.weeks()
	for i := 0; i < limit; i++ {
		cand := bound.AddDate(0, 0, i)
		if p.hasWeekday(cand.Weekday()) {
			return cand, nil
		}
	}
	// При непустом наборе дней окно в неделю и больше всегда даёт попадание.
	return time.Time{}, ErrNoUpcomingOccurrence
}

// nextMonthly: тот же день месяца каждые Interval месяцев от startDate.
// Если в месяце такого дня нет — прижимаемся к последнему дню месяца.
func nextMonthly(p Pattern, bound, anchor, horizon time.Time) (time.Time, error) {
	// Первое число месяца старта: шаг по месяцам от него не дрейфует
	// на коротких месяцах.
	monthAnchor := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	for k := 0; ; k += p.Interval {
		month := monthAnchor.AddDate(0, k, 0)
		if month.After(horizon) {
			return time.Time{}, ErrNoUpcomingOccurrence
		}
		cand := clampToMonth(month, p.DayOfMonth)
		if !cand.Before(bound) {
			return cand, nil
		}
	}
}

// nextCustom: ближайшая из явно заданных дат.
func nextCustom(p Pattern, bound time.Time, loc *time.Location) (time.Time, error) {
	if len(p.CustomDates) == 0 {
		return time.Time{}, ErrUnsupportedPattern
	}

	days := make([]time.Time, 0, len(p.CustomDates))
	for _, raw := range p.CustomDates {
		d, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return time.Time{}, ErrInvalidCustomDate
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	for _, d := range days {
		if !d.Before(bound) {
			return d, nil
		}
	}
	return time.Time{}, ErrNoUpcomingOccurrence
}

// clampToMonth возвращает день day в месяце month,
// прижатый к последнему дню месяца, если день не существует.
func clampToMonth(month time.Time, day int) time.Time {
	last := month.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, month.Location())
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
