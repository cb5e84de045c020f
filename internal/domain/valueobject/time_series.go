package valueobject

// Sample представляет одно значение ряда (Value Object)
// Timestamp хранится в миллисекундах эпохи, как его отдает платформа
type Sample struct {
	Timestamp int64
	Value     float64
}

// TimeSeries представляет упорядоченный ряд значений одной метрики
type TimeSeries []Sample

// NewTimeSeriesFromPairs строит ряд из пар [timestamp, value]
// Пары короче двух элементов пропускаются
func NewTimeSeriesFromPairs(pairs [][]float64) TimeSeries {
	series := make(TimeSeries, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) < 2 {
			continue
		}
		series = append(series, Sample{Timestamp: int64(pair[0]), Value: pair[1]})
	}
	return series
}

// NewTimeSeriesFromColumns строит ряд из параллельных массивов.
// Без меток времени позиция значения используется как метка.
func NewTimeSeriesFromColumns(timestamps []int64, values []float64) TimeSeries {
	series := make(TimeSeries, 0, len(values))
	for i, v := range values {
		ts := int64(i)
		if timestamps != nil {
			if i >= len(timestamps) {
				break
			}
			ts = timestamps[i]
		}
		series = append(series, Sample{Timestamp: ts, Value: v})
	}
	return series
}

// Len возвращает длину ряда
func (ts TimeSeries) Len() int {
	return len(ts)
}

// Timestamps возвращает метки времени ряда
func (ts TimeSeries) Timestamps() []int64 {
	out := make([]int64, len(ts))
	for i, s := range ts {
		out[i] = s.Timestamp
	}
	return out
}

// Values возвращает значения ряда
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts))
	for i, s := range ts {
		out[i] = s.Value
	}
	return out
}

// Last возвращает последнее значение ряда
func (ts TimeSeries) Last() (Sample, bool) {
	if len(ts) == 0 {
		return Sample{}, false
	}
	return ts[len(ts)-1], true
}
