package service

import (
	"errors"
	"sort"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

var errEmptySeries = errors.New("no samples to aggregate")

// MetricAggregator предоставляет агрегаты по рядам (Domain Service)
type MetricAggregator struct{}

// NewMetricAggregator создает новый MetricAggregator
func NewMetricAggregator() *MetricAggregator {
	return &MetricAggregator{}
}

// CalculateAverage вычисляет среднее значение ряда
func (a *MetricAggregator) CalculateAverage(series valueobject.TimeSeries) (float64, error) {
	if len(series) == 0 {
		return 0, errEmptySeries
	}

	var sum float64
	for _, s := range series {
		sum += s.Value
	}

	return sum / float64(len(series)), nil
}

// CalculateMin находит минимальное значение ряда
func (a *MetricAggregator) CalculateMin(series valueobject.TimeSeries) (float64, error) {
	if len(series) == 0 {
		return 0, errEmptySeries
	}

	min := series[0].Value
	for _, s := range series[1:] {
		if s.Value < min {
			min = s.Value
		}
	}

	return min, nil
}

// CalculateMax находит максимальное значение ряда
func (a *MetricAggregator) CalculateMax(series valueobject.TimeSeries) (float64, error) {
	if len(series) == 0 {
		return 0, errEmptySeries
	}

	max := series[0].Value
	for _, s := range series[1:] {
		if s.Value > max {
			max = s.Value
		}
	}

	return max, nil
}

// CalculatePercentile вычисляет процентиль ряда
func (a *MetricAggregator) CalculatePercentile(series valueobject.TimeSeries, percentile float64) (float64, error) {
	if len(series) == 0 {
		return 0, errEmptySeries
	}

	if percentile < 0 || percentile > 100 {
		return 0, errors.New("percentile must be between 0 and 100")
	}

	values := series.Values()
	sort.Float64s(values)
	index := int(float64(len(values)-1) * (percentile / 100.0))

	return values[index], nil
}

// SummarizeKPIs строит агрегаты по всем KPI-рядам результата.
// Пустые ряды пропускаются.
func (a *MetricAggregator) SummarizeKPIs(result *entity.CollectionResult) []entity.KPISummary {
	var summaries []entity.KPISummary

	for _, table := range result.Nodes() {
		for _, name := range table.Names() {
			if !name.KPI {
				continue
			}

			series, ok := table.Series(name.ShortID)
			if !ok || len(series) == 0 {
				continue
			}

			avg, _ := a.CalculateAverage(series)
			min, _ := a.CalculateMin(series)
			max, _ := a.CalculateMax(series)
			last, _ := series.Last()

			summaries = append(summaries, entity.KPISummary{
				Node:    table.Node().String(),
				ShortID: name.ShortID.String(),
				Service: name.Service,
				Key:     name.Key,
				Samples: len(series),
				Min:     min,
				Max:     max,
				Avg:     avg,
				Last:    last.Value,
			})
		}
	}

	return summaries
}
