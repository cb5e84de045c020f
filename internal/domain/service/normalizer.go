package service

import (
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
)

// Normalizer превращает ответ статистики объекта в записи с короткими идентификаторами (Domain Service)
type Normalizer struct{}

// NewNormalizer создает новый Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize присваивает каждой записи следующий идентификатор счетчика.
// Счетчик продвигается ровно на len(entries); KPI выставляется по членству ключа в наборе сервиса.
func (n *Normalizer) Normalize(
	service entity.ServiceSpec,
	object entity.ResolvedObject,
	entries []entity.StatEntry,
	counter valueobject.ShortIDCounter,
) ([]entity.MetricRecord, valueobject.ShortIDCounter) {
	records := make([]entity.MetricRecord, 0, len(entries))

	for _, entry := range entries {
		var id valueobject.ShortID
		id, counter = counter.Next()

		records = append(records, entity.MetricRecord{
			Key:     entry.Key,
			ShortID: id,
			KPI:     service.IsKPI(entry.Key),
			Service: service.Name(),
			Object:  object.DisplayName,
			Series:  entry.Series,
		})
	}

	return records, counter
}
