package usecase

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/internal/domain/service"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// CollectMetricsCommand параметры одного прохода сбора
type CollectMetricsCommand struct {
	Session *entity.Session
	Spec    *entity.PayloadSpec
	Params  url.Values
	Counter valueobject.ShortIDCounter
}

// CollectMetricsUseCase обходит сервисы и объекты и строит таблицы по узлам
type CollectMetricsUseCase struct {
	client     port.PlatformClient
	resolver   *ResolveObjectsUseCase
	normalizer *service.Normalizer
	logger     *logger.Logger
}

// NewCollectMetricsUseCase создает новый use case
func NewCollectMetricsUseCase(
	client port.PlatformClient,
	resolver *ResolveObjectsUseCase,
	normalizer *service.Normalizer,
	logger *logger.Logger,
) *CollectMetricsUseCase {
	return &CollectMetricsUseCase{
		client:     client,
		resolver:   resolver,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Execute выполняет сбор: сервисы в порядке спецификации, объекты в порядке ответа.
// Жесткая ошибка прерывает сбор, частичный результат отбрасывается.
// Объект без данных пропускается.
func (uc *CollectMetricsUseCase) Execute(
	ctx context.Context,
	cmd CollectMetricsCommand,
) (*entity.CollectionResult, valueobject.ShortIDCounter, error) {
	counter := cmd.Counter
	result := entity.NewCollectionResult()

	for _, svc := range cmd.Spec.Services() {
		if err := ctx.Err(); err != nil {
			return nil, cmd.Counter, fmt.Errorf("collection cancelled: %w", err)
		}

		objects, err := uc.resolver.Execute(ctx, cmd.Session, svc.Name())
		if err != nil {
			return nil, cmd.Counter, err
		}

		for i, obj := range objects {
			uc.logger.Info(fmt.Sprintf("%d/%d %s", i+1, len(objects), obj.DisplayName),
				"service", svc.Name(),
				"node", obj.NodeName.String(),
			)

			entries, err := uc.FetchStats(ctx, cmd.Session, obj.Identifier, cmd.Params)
			if err != nil {
				if envErr, ok := AsEnvelopeError(err); ok && envErr.IsSoft() {
					uc.logger.Warn("No metric data for object, skipping",
						"service", svc.Name(),
						"object", obj.DisplayName,
						"identifier", obj.Identifier,
					)
					result.MarkSkipped(entity.SkippedObject{
						Service:    svc.Name(),
						Identifier: obj.Identifier,
						Name:       obj.DisplayName,
						Reason:     string(KindNoData),
					})
					continue
				}
				return nil, cmd.Counter, err
			}

			var records []entity.MetricRecord
			records, counter = uc.normalizer.Normalize(svc, obj, entries, counter)

			if err := result.Table(obj.NodeName).Append(records...); err != nil {
				return nil, cmd.Counter, fmt.Errorf("failed to append records: %w", err)
			}
			result.MarkCollected()
		}
	}

	return result, counter, nil
}

// FetchStats запрашивает статистику объекта.
// Статус 200 без values[0] или stat-list.stat возвращает ErrNoData.
func (uc *CollectMetricsUseCase) FetchStats(
	ctx context.Context,
	session *entity.Session,
	resourceID string,
	params url.Values,
) ([]entity.StatEntry, error) {
	env := uc.client.ResourceStats(ctx, session, resourceID, params)
	if !env.OK() {
		uc.logger.Error("Failed to fetch stats", nil,
			"identifier", resourceID,
			"status", env.StatusCode,
			"message", env.Message,
		)
		return nil, envelopeFailure(StageStats, env)
	}

	stats, ok := env.Data.Entries()
	if !ok {
		return nil, &EnvelopeError{
			Stage:      StageStats,
			Kind:       KindNoData,
			StatusCode: env.StatusCode,
			Message:    "stat-list missing in response",
			Err:        ErrNoData,
		}
	}

	entries := make([]entity.StatEntry, 0, len(stats))
	for _, stat := range stats {
		series, err := stat.Series()
		if err != nil {
			uc.logger.Warn("Unreadable series, keeping empty column",
				"identifier", resourceID,
				"key", stat.StatKey.Key,
				"error", err.Error(),
			)
			series = valueobject.TimeSeries{}
		}
		entries = append(entries, entity.StatEntry{
			Key:    stat.StatKey.Key,
			Series: series,
		})
	}

	return entries, nil
}
