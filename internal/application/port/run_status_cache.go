package port

import (
	"context"
	"errors"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
)

// ErrStatusNotFound returned when no run has been cached yet
var ErrStatusNotFound = errors.New("run status not found")

// RunStatusCache stores the summary of the most recent run
type RunStatusCache interface {
	// SaveLatest replaces the cached summary
	SaveLatest(ctx context.Context, summary *dto.RunSummaryDTO) error

	// GetLatest returns ErrStatusNotFound when nothing is cached
	GetLatest(ctx context.Context) (*dto.RunSummaryDTO, error)

	// Close closes the cache connection
	Close() error
}
