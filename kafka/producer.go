package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer represents a Kafka producer
type Producer struct {
	writer messageWriter
	config *Config
}

// NewProducer creates a new Kafka producer with the given configuration
func NewProducer(config *Config) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll, // Wait for all replicas to acknowledge
		MaxAttempts:  1,
		Async:        config.Async,
		BatchTimeout: config.BatchTimeout,
		Transport: &kafka.Transport{
			ClientID: config.ClientID,
		},
	}
	return newProducer(writer, config)
}

func newProducer(w messageWriter, config *Config) *Producer {
	return &Producer{writer: w, config: config}
}

// Produce sends a message to Kafka with retries and backoff
func (p *Producer) Produce(ctx context.Context, msg kafka.Message) error {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	// The writer retries internally in async mode.
	if p.config.Async {
		return p.writer.WriteMessages(ctx, msg)
	}

	var err error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		err = p.writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}

		if attempt == p.config.MaxRetries {
			break
		}

		// Wait before retrying with exponential backoff
		backoff := p.config.RetryBackoff * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("failed to write message after %d attempts: %w", p.config.MaxRetries+1, err)
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
