package valueobject

import (
	"errors"
	"fmt"
	"math"
)

// MetricValue представляет значение телеметрии с единицей измерения (Value Object)
type MetricValue struct {
	value float64
	unit  string
}

// NewMetricValue создает новый MetricValue с валидацией
func NewMetricValue(value float64, unit string) (MetricValue, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MetricValue{}, errors.New("value must be finite")
	}

	if value < 0 {
		return MetricValue{}, errors.New("value cannot be negative")
	}

	if unit == "" {
		return MetricValue{}, errors.New("unit cannot be empty")
	}

	if unit == "%" && value > 100 {
		return MetricValue{}, errors.New("percentage cannot exceed 100")
	}

	return MetricValue{
		value: value,
		unit:  unit,
	}, nil
}

// Raw возвращает числовое значение
func (mv MetricValue) Raw() float64 {
	return mv.value
}

// Unit возвращает единицу измерения
func (mv MetricValue) Unit() string {
	return mv.unit
}

// String возвращает строковое представление
func (mv MetricValue) String() string {
	if mv.unit == "count" {
		return fmt.Sprintf("%.0f", mv.value)
	}
	return fmt.Sprintf("%.2f %s", mv.value, mv.unit)
}
