// Package eventbus exports processed store events to Kafka.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/suteetoe/shopdash/pkg/config"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

// Message is one processed event as exported downstream
type Message struct {
	TenantID   uint            `json:"tenant_id"`
	Topic      string          `json:"topic"`
	ResourceID *int64          `json:"resource_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher exports messages
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// MessageWriter is the part of kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes messages to a Kafka topic keyed by tenant
type Producer struct {
	writer MessageWriter
	topic  string
}

// NewProducer creates a producer for the configured brokers and topic
func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, cfg.Topic)
}

// NewProducerWithWriter creates a producer over an existing writer
func NewProducerWithWriter(writer MessageWriter, topic string) *Producer {
	return &Producer{writer: writer, topic: topic}
}

// New returns a Kafka producer when brokers are configured, otherwise a no-op publisher
func New(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		return Nop{}
	}
	return NewProducer(cfg)
}

// Publish writes one message. Hashing on the tenant key keeps a tenant's events ordered.
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	tenant := strconv.FormatUint(uint64(msg.TenantID), 10)
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tenant),
		Value: data,
		Headers: []kafka.Header{
			{Key: "tenant_id", Value: []byte(tenant)},
			{Key: "topic", Value: []byte(msg.Topic)},
		},
	})
	if err != nil {
		prometheus.EventExportFailures.Inc()
		logger.FromContext(ctx).Error("Failed to publish event",
			zap.String("kafka_topic", p.topic),
			zap.Uint("tenant_id", msg.TenantID),
			zap.String("topic", msg.Topic),
			zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the writer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Nop discards every message
type Nop struct{}

func (Nop) Publish(context.Context, Message) error { return nil }
func (Nop) Close() error                           { return nil }
