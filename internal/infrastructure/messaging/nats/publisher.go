package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
	"github.com/nats-io/nats.go"
)

const defaultSubject = "selfmon.runs"

// NATSPublisher implements EventPublisher for NATS JetStream
type NATSPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	logger  *logger.Logger
}

// NewNATSPublisher creates a new NATS publisher.
// Events go to "<subject>.<event type>", e.g. selfmon.runs.finished.
func NewNATSPublisher(natsURL, subject string, log *logger.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("selfmon-collector"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	log.Info("Connected to NATS", "url", natsURL)

	return &NATSPublisher{
		nc:      nc,
		js:      js,
		subject: normalizeSubject(subject),
		logger:  log,
	}, nil
}

// PublishRunEvent publishes a run lifecycle event (async)
func (p *NATSPublisher) PublishRunEvent(ctx context.Context, event *dto.RunEventDTO) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := SubjectFor(p.subject, event.Type)

	// Fire-and-forget; delivery failures surface through the JetStream error handler.
	_, err = p.js.PublishAsync(subject, data, nats.MsgId(event.RunID+"."+event.Type+"."+event.State))
	if err != nil {
		p.logger.Error("Failed to publish event", err,
			"subject", subject,
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		"subject", subject,
		"size", len(data),
	)

	return nil
}

// Close waits briefly for pending async publishes and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(2 * time.Second):
		p.logger.Warn("NATS async publishes still pending on close", "pending", p.js.PublishAsyncPending())
	}

	p.logger.Info("Closing NATS connection")
	p.nc.Close()
	return nil
}

// SubjectFor builds the subject for an event type
func SubjectFor(base, eventType string) string {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return base
	}
	return base + "." + eventType
}

func normalizeSubject(subject string) string {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		return defaultSubject
	}
	return subject
}
