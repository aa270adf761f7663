package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/stock-price-updater/internal/models"
)

// BackfillRunner re-fetches and upserts a date range
type BackfillRunner interface {
	Backfill(ctx context.Context, from, to time.Time) (models.RunResult, error)
}

// Consumer handles backfill requests arriving on Kafka. Requests are
// processed one at a time; a malformed or failed request is logged and the
// consumer moves on.
type Consumer struct {
	reader *kafka.Reader
	runner BackfillRunner
	symbol string
	now    func() time.Time
}

// NewConsumer creates a new Kafka consumer for backfill requests
func NewConsumer(brokers []string, topic, groupID, symbol string, runner BackfillRunner) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1e6, // 1MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		runner: runner,
		symbol: symbol,
		now:    time.Now,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting Kafka consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Kafka consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing message: %v", err)
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Printf("Received message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var req models.BackfillRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("failed to unmarshal backfill request: %w", err)
	}

	if req.EventType != models.EventBackfillRequested {
		log.Printf("Ignoring event type: %s", req.EventType)
		return nil
	}
	if req.Symbol != "" && !strings.EqualFold(req.Symbol, c.symbol) {
		log.Printf("Ignoring backfill for %s, this updater handles %s", req.Symbol, c.symbol)
		return nil
	}

	from, to, err := c.parseRange(req)
	if err != nil {
		return err
	}

	result, err := c.runner.Backfill(ctx, from, to)
	if err != nil {
		return fmt.Errorf("backfill %s..%s failed: %w", req.Start, to.Format(models.DateLayout), err)
	}

	log.Printf("Backfill %s..%s: %d fetched, %d written (run %s)",
		req.Start, to.Format(models.DateLayout), result.Fetched, result.Written, result.RunID)
	return nil
}

// parseRange validates the requested window; an empty end means now
func (c *Consumer) parseRange(req models.BackfillRequest) (time.Time, time.Time, error) {
	from, err := models.ParseTradeDate(req.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q: %w", req.Start, err)
	}

	to := c.now()
	if req.End != "" {
		if to, err = models.ParseTradeDate(req.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q: %w", req.End, err)
		}
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is before start %s", to.Format(models.DateLayout), req.Start)
	}
	return from, to, nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
