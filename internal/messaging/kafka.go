package messaging

import (
	"context"
	"encoding/json"
	"time"

	"n8n-gportal/internal/config"
	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafka.Writer the broadcaster needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBroadcaster publishes UI commands to a Kafka topic keyed by room,
// so every command for one execution lands on the same partition.
type KafkaBroadcaster struct {
	writer  messageWriter
	topic   string
	client  string
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewKafkaBroadcaster creates a broadcaster writing to cfg.Topic
func NewKafkaBroadcaster(cfg *config.KafkaConfig, log logger.Logger, m *metrics.Metrics) (*KafkaBroadcaster, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeValidation, errors.CodeMissingField, "Kafka config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, errors.CodeMissingField, "at least one Kafka broker is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  cfg.MaxAttempts,
		BatchTimeout: cfg.BatchTimeout,
	}

	return newKafkaBroadcaster(writer, cfg.Topic, cfg.ClientID, log, m), nil
}

func newKafkaBroadcaster(w messageWriter, topic, clientID string, log logger.Logger, m *metrics.Metrics) *KafkaBroadcaster {
	return &KafkaBroadcaster{
		writer:  w,
		topic:   topic,
		client:  clientID,
		logger:  log,
		metrics: m,
	}
}

func (b *KafkaBroadcaster) Broadcast(ctx context.Context, msg Broadcast) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, errors.CodeInternal, "failed to serialize broadcast")
	}

	message := kafka.Message{
		Key:   []byte(msg.Room),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-name", Value: []byte(msg.EventName)},
			{Key: "producer", Value: []byte(b.client)},
		},
	}

	start := time.Now()
	if err := b.writer.WriteMessages(ctx, message); err != nil {
		b.logger.ErrorContext(ctx, "Failed to publish broadcast to Kafka",
			"error", err,
			"topic", b.topic,
			"room", msg.Room,
			"duration", time.Since(start),
		)
		b.metrics.RecordBroadcast("kafka", "error")
		return errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeExternalService, "failed to publish broadcast to Kafka")
	}

	b.logger.DebugContext(ctx, "Broadcast published to Kafka",
		"topic", b.topic,
		"room", msg.Room,
		"size", len(value),
	)
	b.metrics.RecordBroadcast("kafka", "success")
	return nil
}

func (b *KafkaBroadcaster) Close() error {
	return b.writer.Close()
}
