package usecase

import (
	"context"
	"errors"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/application/port"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

// RunSnapshotSource отдает итог последнего запуска из памяти процесса
type RunSnapshotSource interface {
	Snapshot() (*dto.RunSummaryDTO, bool)
}

// GetLastRunUseCase возвращает итог последнего запуска: сначала из кеша, затем из памяти процесса
type GetLastRunUseCase struct {
	cache    port.RunStatusCache
	snapshot RunSnapshotSource
	logger   *logger.Logger
}

// NewGetLastRunUseCase создает новый use case
func NewGetLastRunUseCase(cache port.RunStatusCache, snapshot RunSnapshotSource, logger *logger.Logger) *GetLastRunUseCase {
	return &GetLastRunUseCase{
		cache:    cache,
		snapshot: snapshot,
		logger:   logger,
	}
}

// Execute возвращает port.ErrStatusNotFound, если запусков еще не было
func (uc *GetLastRunUseCase) Execute(ctx context.Context) (*dto.RunSummaryDTO, error) {
	if uc.cache != nil {
		summary, err := uc.cache.GetLatest(ctx)
		if err == nil {
			uc.logger.Debug("Cache hit for last run", "run_id", summary.RunID)
			return summary, nil
		}
		if !errors.Is(err, port.ErrStatusNotFound) {
			uc.logger.Warn("Failed to read last run from cache", "error", err.Error())
		}
	}

	if uc.snapshot != nil {
		if summary, ok := uc.snapshot.Snapshot(); ok {
			return summary, nil
		}
	}

	return nil, port.ErrStatusNotFound
}
