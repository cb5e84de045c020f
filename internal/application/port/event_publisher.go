package port

import (
	"context"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
)

// EventPublisher defines the interface for publishing run events to a message broker
type EventPublisher interface {
	// PublishRunEvent publishes a run lifecycle event
	PublishRunEvent(ctx context.Context, event *dto.RunEventDTO) error

	// Close closes the connection to the message broker
	Close() error
}
