package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

// MetricValidator проверяет точки телеметрии перед публикацией (Domain Service)
type MetricValidator struct {
	clockSkew time.Duration
}

// NewMetricValidator создает новый MetricValidator
func NewMetricValidator() *MetricValidator {
	return &MetricValidator{clockSkew: time.Minute}
}

// Validate выполняет полную валидацию точки
func (v *MetricValidator) Validate(metric *entity.Metric) error {
	if metric == nil {
		return errors.New("metric cannot be nil")
	}

	if err := metric.Type().Validate(); err != nil {
		return err
	}

	if metric.RunID() == "" {
		return errors.New("run id cannot be empty")
	}

	if metric.CollectedAt().After(time.Now().Add(v.clockSkew)) {
		return errors.New("collected_at cannot be in the future")
	}

	if metric.Value().Unit() != metric.Type().DefaultUnit() {
		return fmt.Errorf("invalid unit %q for %s", metric.Value().Unit(), metric.Type())
	}

	if !v.IsReasonable(metric) {
		return fmt.Errorf("value %s is out of range for %s", metric.Value(), metric.Type())
	}

	return nil
}

// FilterValid возвращает валидные точки и ошибки по отброшенным
func (v *MetricValidator) FilterValid(metrics []*entity.Metric) ([]*entity.Metric, []error) {
	valid := make([]*entity.Metric, 0, len(metrics))
	var errs []error

	for i, metric := range metrics {
		if err := v.Validate(metric); err != nil {
			errs = append(errs, fmt.Errorf("metric %d: %w", i, err))
			continue
		}
		valid = append(valid, metric)
	}

	return valid, errs
}

// IsReasonable проверяет, находится ли значение в разумных пределах
func (v *MetricValidator) IsReasonable(metric *entity.Metric) bool {
	val := metric.Value().Raw()
	switch {
	case metric.Type().IsHost() && metric.Value().Unit() == "%":
		return val >= 0 && val <= 100
	case metric.Type() == valueobject.RunDuration:
		// запуск дольше суток считаем ошибкой часов
		return val < 86400
	default:
		return true
	}
}
