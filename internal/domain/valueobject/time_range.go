package valueobject

import (
	"errors"
	"strconv"
	"time"
)

// TimeRange представляет окно сбора статистики (Value Object)
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange создает новый TimeRange с валидацией
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, errors.New("start and end times cannot be zero")
	}

	if start.After(end) {
		return TimeRange{}, errors.New("start time must be before end time")
	}

	return TimeRange{
		start: start,
		end:   end,
	}, nil
}

// NewTimeRangeEndingAt создает окно длиной duration, заканчивающееся в end
func NewTimeRangeEndingAt(end time.Time, duration time.Duration) (TimeRange, error) {
	if duration <= 0 {
		return TimeRange{}, errors.New("duration must be positive")
	}

	return NewTimeRange(end.Add(-duration), end)
}

// Start возвращает начальное время
func (tr TimeRange) Start() time.Time {
	return tr.start
}

// End возвращает конечное время
func (tr TimeRange) End() time.Time {
	return tr.end
}

// Duration возвращает длительность окна
func (tr TimeRange) Duration() time.Duration {
	return tr.end.Sub(tr.start)
}

// Contains проверяет, попадает ли метка времени (мс) в окно
func (tr TimeRange) Contains(ms int64) bool {
	t := time.UnixMilli(ms)
	return !t.Before(tr.start) && !t.After(tr.end)
}

// BeginParam возвращает начало окна в формате параметра begin
func (tr TimeRange) BeginParam() string {
	return strconv.FormatInt(tr.start.UnixMilli(), 10)
}

// EndParam возвращает конец окна в формате параметра end
func (tr TimeRange) EndParam() string {
	return strconv.FormatInt(tr.end.UnixMilli(), 10)
}
