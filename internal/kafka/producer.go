package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

// messageWriter is the subset of *kafka.Writer the producer needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing price update events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishPricesUpdated publishes the outcome of a successful run
func (p *Producer) PublishPricesUpdated(ctx context.Context, result models.RunResult) error {
	event := models.PriceEvent{
		EventType: models.EventPricesUpdated,
		RunID:     result.RunID,
		Symbol:    result.Symbol,
		Source:    result.Source,
		Fetched:   result.Fetched,
		Written:   result.Written,
		Latest:    result.Latest,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, result.Symbol, event)
}

// PublishUpdateFailed publishes a failed run
func (p *Producer) PublishUpdateFailed(ctx context.Context, result models.RunResult, cause error) error {
	event := models.PriceEvent{
		EventType: models.EventPricesUpdateFailed,
		RunID:     result.RunID,
		Symbol:    result.Symbol,
		Source:    result.Source,
		Fetched:   result.Fetched,
		Written:   result.Written,
		Timestamp: time.Now(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	return p.publish(ctx, result.Symbol, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.PriceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
