package timeclock

import (
	"sort"
	"time"

	"github.com/modernmen/scheduling-core/internal/model"
)

// Аномалия спаривания отметок. Все аномалии нефатальны:
// они прикрепляются к отрезку как данные, решает дальше payroll.
type Anomaly string

const (
	// Вторая отметка прихода при незакрытой смене.
	AnomalyMultipleOpenShifts Anomaly = "multiple_open_shifts"
	// Начало/конец перерыва вне открытой смены.
	AnomalyOrphanBreakStart Anomaly = "orphan_break_start"
	AnomalyOrphanBreakEnd   Anomaly = "orphan_break_end"
	// Смена не закрыта к концу дня; длительность посчитана до границы.
	AnomalyOpenShift Anomaly = "open_shift"
	// Уход без прихода; в суммарное время не входит.
	AnomalyOrphanClockOut Anomaly = "orphan_clock_out"
	// Пересекающиеся перерывы объединены перед вычитанием.
	AnomalyOverlappingBreak Anomaly = "overlapping_break"
)

// Интервал перерыва внутри смены.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Segment — один отрезок смены от прихода до ухода с вычетом перерывов.
type Segment struct {
	ClockIn  time.Time
	ClockOut *time.Time
	Breaks   []Interval
	// Отработанное время отрезка за вычетом перерывов.
	Duration   time.Duration
	Incomplete bool
	Anomalies  []Anomaly
}

func (s *Segment) flag(a Anomaly) {
	for _, existing := range s.Anomalies {
		if existing == a {
			return
		}
	}
	s.Anomalies = append(s.Anomalies, a)
}

// BuildSegments спаривает отметки одного сотрудника за один день
// в отрезки смен. События должны идти в хронологическом порядке.
// Незакрытые к концу обхода смены обрезаются по min(now, dayEnd).
func BuildSegments(events []model.ClockEvent, dayEnd, now time.Time) []Segment {
	var (
		segments []Segment
		open     []*Segment // стек открытых смен
	)

	openBreaks := map[*Segment]*Interval{}

	top := func() *Segment {
		if len(open) == 0 {
			return nil
		}
		return open[len(open)-1]
	}

	for _, ev := range events {
		switch ev.Action {
		case model.ClockActionIn:
			seg := &Segment{ClockIn: ev.Timestamp}
			if len(open) > 0 {
				seg.flag(AnomalyMultipleOpenShifts)
			}
			open = append(open, seg)

		case model.ClockActionOut:
			cur := top()
			if cur == nil {
				// Уход без прихода: нулевой отрезок-маркер,
				// чтобы событие осталось видимым для payroll.
				ts := ev.Timestamp
				segments = append(segments, Segment{
					ClockIn:   ev.Timestamp,
					ClockOut:  &ts,
					Anomalies: []Anomaly{AnomalyOrphanClockOut},
				})
				continue
			}
			open = open[:len(open)-1]
			ts := ev.Timestamp
			cur.ClockOut = &ts
			// Перерыв, не закрытый к уходу, обрезается по уходу.
			if br := openBreaks[cur]; br != nil {
				br.End = ev.Timestamp
				cur.Breaks = append(cur.Breaks, *br)
				delete(openBreaks, cur)
			}
			segments = append(segments, *cur)

		case model.ClockActionBreakStart:
			cur := top()
			if cur == nil {
				segments = append(segments, Segment{
					ClockIn:   ev.Timestamp,
					ClockOut:  ptrTime(ev.Timestamp),
					Anomalies: []Anomaly{AnomalyOrphanBreakStart},
				})
				continue
			}
			if prev := openBreaks[cur]; prev != nil {
				// Второй break_start поверх открытого перерыва:
				// старый закрывается началом нового и объединится
				// с ним при вычитании.
				prev.End = ev.Timestamp
				cur.Breaks = append(cur.Breaks, *prev)
				cur.flag(AnomalyOverlappingBreak)
			}
			openBreaks[cur] = &Interval{Start: ev.Timestamp, End: ev.Timestamp}

		case model.ClockActionBreakEnd:
			cur := top()
			if cur == nil {
				segments = append(segments, Segment{
					ClockIn:   ev.Timestamp,
					ClockOut:  ptrTime(ev.Timestamp),
					Anomalies: []Anomaly{AnomalyOrphanBreakEnd},
				})
				continue
			}
			br := openBreaks[cur]
			if br == nil {
				cur.flag(AnomalyOrphanBreakEnd)
				continue
			}
			br.End = ev.Timestamp
			cur.Breaks = append(cur.Breaks, *br)
			delete(openBreaks, cur)
		}
	}

	// Незакрытые смены: обрезаем по концу дня или "сейчас".
	cutoff := now
	if dayEnd.Before(cutoff) {
		cutoff = dayEnd
	}
	for i := len(open) - 1; i >= 0; i-- {
		cur := open[i]
		end := cutoff
		if end.Before(cur.ClockIn) {
			end = cur.ClockIn
		}
		if br := openBreaks[cur]; br != nil {
			br.End = end
			cur.Breaks = append(cur.Breaks, *br)
			delete(openBreaks, cur)
		}
		cur.flag(AnomalyOpenShift)
		cur.Incomplete = true
		cur.ClockOut = ptrTime(end)
		segments = append(segments, *cur)
	}

	for i := range segments {
		computeDuration(&segments[i])
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].ClockIn.Before(segments[j].ClockIn)
	})
	return segments
}

// TotalDuration — суммарное отработанное время за день.
// Отрезки-сироты (orphan clock-out) дают ноль и на сумму не влияют.
func TotalDuration(segments []Segment) time.Duration {
	var total time.Duration
	for _, s := range segments {
		total += s.Duration
	}
	return total
}

// BreakDuration — суммарная длительность перерывов отрезка
// после объединения пересечений и обрезки по границам смены.
func BreakDuration(s *Segment) time.Duration {
	if s.ClockOut == nil {
		return 0
	}
	merged, _ := mergeIntervals(s.Breaks)
	var total time.Duration
	for _, br := range merged {
		total += clip(br, s.ClockIn, *s.ClockOut)
	}
	return total
}

// computeDuration: длительность = (уход - приход) - объединённые перерывы.
func computeDuration(s *Segment) {
	if s.ClockOut == nil {
		s.Duration = 0
		return
	}
	// Отрезки-маркеры (orphan clock-out и т.п.) имеют нулевой размах
	// и дают ноль без отдельной ветки.
	span := s.ClockOut.Sub(s.ClockIn)
	merged, overlapped := mergeIntervals(s.Breaks)
	if overlapped {
		s.flag(AnomalyOverlappingBreak)
	}
	var breaks time.Duration
	for _, br := range merged {
		breaks += clip(br, s.ClockIn, *s.ClockOut)
	}
	s.Duration = span - breaks
	if s.Duration < 0 {
		s.Duration = 0
	}
}

// mergeIntervals объединяет пересекающиеся и смежные интервалы.
// Второй результат — были ли настоящие пересечения: стык встык
// объединяется, но пересечением не считается.
func mergeIntervals(intervals []Interval) ([]Interval, bool) {
	if len(intervals) < 2 {
		return intervals, false
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Interval{sorted[0]}
	overlapped := false
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !cur.Start.After(last.End) {
			if cur.Start.Before(last.End) {
				overlapped = true
			}
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged, overlapped
}

// clip возвращает длительность части интервала внутри [from, to].
func clip(iv Interval, from, to time.Time) time.Duration {
	start, end := iv.Start, iv.End
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
