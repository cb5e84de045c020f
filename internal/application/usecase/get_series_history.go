package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/domain/repository"
	"github.com/dreschagin/vrops-selfmon/internal/domain/service"
	"github.com/dreschagin/vrops-selfmon/internal/domain/valueobject"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// GetSeriesHistoryUseCase возвращает архивный ряд метрики узла за указанный период
type GetSeriesHistoryUseCase struct {
	repository repository.SampleRepository
	aggregator *service.MetricAggregator
	logger     *logger.Logger
}

// NewGetSeriesHistoryUseCase создает новый use case
func NewGetSeriesHistoryUseCase(
	repository repository.SampleRepository,
	aggregator *service.MetricAggregator,
	logger *logger.Logger,
) *GetSeriesHistoryUseCase {
	return &GetSeriesHistoryUseCase{
		repository: repository,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Execute выполняет получение ряда с агрегатами
func (uc *GetSeriesHistoryUseCase) Execute(
	ctx context.Context,
	node valueobject.NodeName,
	key string,
	window valueobject.TimeRange,
) (*dto.SeriesHistoryDTO, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("stat key is required")
	}

	uc.logger.Debug("Fetching series history",
		"node", node.String(),
		"key", key,
		"start", window.Start(),
		"end", window.End())

	series, err := uc.repository.FindSeries(ctx, node, key, window)
	if err != nil {
		uc.logger.Error("Failed to fetch series history", err)
		return nil, fmt.Errorf("failed to fetch series history: %w", err)
	}

	history := &dto.SeriesHistoryDTO{
		Node:   node.String(),
		Key:    key,
		From:   window.Start().UTC(),
		To:     window.End().UTC(),
		Points: make([]dto.SamplePointDTO, 0, len(series)),
	}

	if len(series) == 0 {
		return history, nil
	}

	for _, s := range series {
		history.Points = append(history.Points, dto.SamplePointDTO{Timestamp: s.Timestamp, Value: s.Value})
	}

	// Вычисляем агрегаты
	history.Average, _ = uc.aggregator.CalculateAverage(series)
	history.Min, _ = uc.aggregator.CalculateMin(series)
	history.Max, _ = uc.aggregator.CalculateMax(series)
	history.P95, _ = uc.aggregator.CalculatePercentile(series, 95)

	return history, nil
}
