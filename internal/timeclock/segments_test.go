package timeclock

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/modernmen/scheduling-core/internal/model"
)

var (
	testStaffID  = uuid.New()
	testTenantID = uuid.New()
)

func clockEvent(t *testing.T, action model.ClockAction, hour, min int) model.ClockEvent {
	t.Helper()
	return model.ClockEvent{
		ID:        uuid.New(),
		TenantID:  testTenantID,
		StaffID:   testStaffID,
		Action:    action,
		Timestamp: time.Date(2024, time.March, 4, hour, min, 0, 0, time.UTC),
	}
}

func dayBounds(t *testing.T) (dayEnd, now time.Time) {
	t.Helper()
	dayEnd = time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	now = time.Date(2024, time.March, 4, 23, 0, 0, 0, time.UTC)
	return dayEnd, now
}

func hasAnomaly(seg Segment, a Anomaly) bool {
	for _, got := range seg.Anomalies {
		if got == a {
			return true
		}
	}
	return false
}

//
// Нормальная смена
//

func TestBuildSegments_FullDayWithBreak(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionIn, 9, 0),
		clockEvent(t, model.ClockActionBreakStart, 12, 0),
		clockEvent(t, model.ClockActionBreakEnd, 12, 30),
		clockEvent(t, model.ClockActionOut, 17, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}

	seg := segments[0]
	if len(seg.Anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %v", seg.Anomalies)
	}
	if seg.Incomplete {
		t.Fatalf("expected complete segment")
	}
	// 8 часов минус 30 минут перерыва = 450 минут.
	if seg.Duration != 450*time.Minute {
		t.Fatalf("expected 450m, got %v", seg.Duration)
	}
	if TotalDuration(segments) != 450*time.Minute {
		t.Fatalf("expected total 450m, got %v", TotalDuration(segments))
	}
}

//
// Сироты
//

func TestBuildSegments_OrphanClockOut(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionOut, 10, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if !hasAnomaly(seg, AnomalyOrphanClockOut) {
		t.Fatalf("expected orphan_clock_out anomaly, got %v", seg.Anomalies)
	}
	if seg.Duration != 0 {
		t.Fatalf("expected zero duration, got %v", seg.Duration)
	}
	if TotalDuration(segments) != 0 {
		t.Fatalf("orphan clock-out must not contribute to total")
	}
}

func TestBuildSegments_OrphanBreakOutsideShift(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionBreakStart, 8, 0),
		clockEvent(t, model.ClockActionIn, 9, 0),
		clockEvent(t, model.ClockActionOut, 10, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if !hasAnomaly(segments[0], AnomalyOrphanBreakStart) {
		t.Fatalf("expected orphan_break_start on marker segment, got %v", segments[0].Anomalies)
	}
	if segments[1].Duration != time.Hour {
		t.Fatalf("expected 1h work segment, got %v", segments[1].Duration)
	}
}

func TestBuildSegments_OrphanBreakEndInsideShift(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionIn, 9, 0),
		clockEvent(t, model.ClockActionBreakEnd, 11, 0),
		clockEvent(t, model.ClockActionOut, 12, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if !hasAnomaly(seg, AnomalyOrphanBreakEnd) {
		t.Fatalf("expected orphan_break_end, got %v", seg.Anomalies)
	}
	// Неспаренный конец перерыва время не вычитает.
	if seg.Duration != 3*time.Hour {
		t.Fatalf("expected 3h, got %v", seg.Duration)
	}
}

//
// Незакрытая смена
//

func TestBuildSegments_OpenShiftCutAtNow(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionIn, 20, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if !hasAnomaly(seg, AnomalyOpenShift) {
		t.Fatalf("expected open_shift, got %v", seg.Anomalies)
	}
	if !seg.Incomplete {
		t.Fatalf("expected incomplete segment")
	}
	// now (23:00) раньше конца дня — обрезка по now: 3 часа.
	if seg.Duration != 3*time.Hour {
		t.Fatalf("expected 3h, got %v", seg.Duration)
	}
}

func TestBuildSegments_OpenShiftCutAtDayEnd(t *testing.T) {
	dayEnd := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	// Пересчёт задним числом: "сейчас" уже далеко после конца дня.
	now := time.Date(2024, time.March, 7, 12, 0, 0, 0, time.UTC)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionIn, 22, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	seg := segments[0]
	if seg.Duration != 2*time.Hour {
		t.Fatalf("expected 2h to day end, got %v", seg.Duration)
	}
}

//
// Двойной приход
//

func TestBuildSegments_MultipleOpenShifts(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionIn, 9, 0),
		clockEvent(t, model.ClockActionIn, 10, 0),
		clockEvent(t, model.ClockActionOut, 12, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}

	// Уход закрывает последнюю открытую смену (10:00-12:00),
	// первая остаётся открытой и обрезается.
	first, second := segments[0], segments[1]
	if !hasAnomaly(first, AnomalyOpenShift) {
		t.Fatalf("expected first shift left open, got %v", first.Anomalies)
	}
	if !hasAnomaly(second, AnomalyMultipleOpenShifts) {
		t.Fatalf("expected multiple_open_shifts on second, got %v", second.Anomalies)
	}
	if second.Duration != 2*time.Hour {
		t.Fatalf("expected 2h on second shift, got %v", second.Duration)
	}
}

//
// Пересекающиеся перерывы
//

func TestBuildSegments_OverlappingBreaksUnioned(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionIn, 9, 0),
		clockEvent(t, model.ClockActionBreakStart, 12, 0),
		// Второй перерыв стартует до закрытия первого.
		clockEvent(t, model.ClockActionBreakStart, 12, 20),
		clockEvent(t, model.ClockActionBreakEnd, 12, 40),
		clockEvent(t, model.ClockActionOut, 17, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	if !hasAnomaly(seg, AnomalyOverlappingBreak) {
		t.Fatalf("expected overlapping_break, got %v", seg.Anomalies)
	}
	// Объединённый перерыв 12:00-12:40 = 40 минут; 8ч - 40м = 440м.
	if seg.Duration != 440*time.Minute {
		t.Fatalf("expected 440m, got %v", seg.Duration)
	}
}

//
// Перерыв, не закрытый к уходу
//

func TestBuildSegments_BreakClippedByClockOut(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionIn, 9, 0),
		clockEvent(t, model.ClockActionBreakStart, 16, 30),
		clockEvent(t, model.ClockActionOut, 17, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	seg := segments[0]
	// Перерыв обрезан по уходу: 8ч - 30м = 450м.
	if seg.Duration != 450*time.Minute {
		t.Fatalf("expected 450m, got %v", seg.Duration)
	}
}

func TestBuildSegments_BackToBackBreaksNotFlagged(t *testing.T) {
	dayEnd, now := dayBounds(t)
	events := []model.ClockEvent{
		clockEvent(t, model.ClockActionIn, 9, 0),
		clockEvent(t, model.ClockActionBreakStart, 12, 0),
		clockEvent(t, model.ClockActionBreakEnd, 12, 30),
		// Второй перерыв начинается ровно в конце первого.
		clockEvent(t, model.ClockActionBreakStart, 12, 30),
		clockEvent(t, model.ClockActionBreakEnd, 13, 0),
		clockEvent(t, model.ClockActionOut, 17, 0),
	}

	segments := BuildSegments(events, dayEnd, now)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	seg := segments[0]
	// Стык встык — не пересечение.
	if len(seg.Anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %v", seg.Anomalies)
	}
	// 8 часов минус два перерыва по 30 минут = 420 минут.
	if seg.Duration != 420*time.Minute {
		t.Fatalf("expected 420m, got %v", seg.Duration)
	}
}
