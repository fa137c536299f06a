// Package messaging fans UI commands out to connected GPortal clients
package messaging

import (
	"context"
	"fmt"
	"net/http"

	"n8n-gportal/internal/config"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"
)

// EventExecuteUICommand asks the UI of an execution room to run its current step
const EventExecuteUICommand = "execute-ui-command"

// Broadcast is one message for the clients joined to Room
type Broadcast struct {
	Room      string         `json:"room"`
	EventName string         `json:"eventName"`
	Data      map[string]any `json:"data"`
}

// UICommand builds the broadcast that tells an execution's UI which step is current
func UICommand(executionID, stepName string) Broadcast {
	return Broadcast{
		Room:      executionID,
		EventName: EventExecuteUICommand,
		Data:      map[string]any{"currentStepName": stepName},
	}
}

// Broadcaster delivers broadcasts. Callers treat delivery as best effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Broadcast) error
	Close() error
}

// Poster sends a JSON body to a path of the GPortal API
type Poster interface {
	Do(ctx context.Context, method, path string, query map[string]string, body any) (any, error)
}

// HTTPBroadcaster posts broadcasts to the portal's socket relay
type HTTPBroadcaster struct {
	poster  Poster
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewHTTPBroadcaster creates a broadcaster using poster
func NewHTTPBroadcaster(poster Poster, log logger.Logger, m *metrics.Metrics) *HTTPBroadcaster {
	return &HTTPBroadcaster{poster: poster, logger: log, metrics: m}
}

func (b *HTTPBroadcaster) Broadcast(ctx context.Context, msg Broadcast) error {
	b.logger.InfoContext(ctx, "Sending broadcast", "room", msg.Room, "event", msg.EventName)

	resp, err := b.poster.Do(ctx, http.MethodPost, "/socket/broadcast", nil, msg)
	if err != nil {
		b.metrics.RecordBroadcast("http", "error")
		return fmt.Errorf("broadcast to room %s: %w", msg.Room, err)
	}

	b.logger.DebugContext(ctx, "Broadcast response", "room", msg.Room, "response", resp)
	b.metrics.RecordBroadcast("http", "success")
	return nil
}

func (b *HTTPBroadcaster) Close() error { return nil }

// NopBroadcaster drops every broadcast
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, Broadcast) error { return nil }
func (NopBroadcaster) Close() error                              { return nil }

// New selects a broadcaster for cfg.Broadcast.Mode. poster is used by the
// http mode and may be nil otherwise.
func New(cfg *config.Config, poster Poster, log logger.Logger, m *metrics.Metrics) (Broadcaster, error) {
	switch cfg.Broadcast.Mode {
	case "kafka":
		return NewKafkaBroadcaster(cfg.Kafka, log, m)
	case "http":
		if poster == nil {
			return nil, fmt.Errorf("http broadcast mode requires a GPortal client")
		}
		return NewHTTPBroadcaster(poster, log, m), nil
	default:
		return NopBroadcaster{}, nil
	}
}
