package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/pkg/config"
)

// Publisher emits account lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event models.AccountEvent)
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic, keyed by account
// id so that events of one account stay ordered within a partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// New returns a Kafka publisher when events are enabled and a no-op
// publisher otherwise.
func New(cfg config.EventsConfig, logger *zap.Logger) Publisher {
	if !cfg.Enabled {
		return Nop{}
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return newKafkaPublisher(writer, cfg.WriteTimeout, logger)
}

func newKafkaPublisher(writer messageWriter, timeout time.Duration, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{writer: writer, timeout: timeout, logger: logger}
}

// Publish sends the event. Delivery failures are logged and swallowed so
// that account operations never fail because the broker is down.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.AccountEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if err := p.write(ctx, event); err != nil {
		p.logger.Warn("account event not published",
			zap.String("event_type", event.Type),
			zap.String("account_id", event.AccountID),
			zap.Error(err),
		)
	}
}

func (p *KafkaPublisher) write(ctx context.Context, event models.AccountEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AccountID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, models.AccountEvent) {}

// Close implements Publisher.
func (Nop) Close() error { return nil }
