package kafka

import (
	"time"
)

// Config holds the broker and topic settings for login event publishing
type Config struct {
	// Broker addresses
	Brokers []string

	// Topic configuration
	Topic             string
	NumPartitions     int
	ReplicationFactor int

	// Retention configuration
	RetentionPeriod time.Duration
	RetentionSize   int64 // bytes

	// Producer configuration
	MaxRetries   int           // Number of retries for producer
	RetryBackoff time.Duration // Backoff time between retries, doubled per attempt
	ClientID     string
	Async        bool
	// BatchTimeout caps how long a partial batch waits before it is sent
	BatchTimeout time.Duration
}

// NewDefaultConfig returns a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Brokers:           []string{"localhost:9092"},
		Topic:             "sso.logins",
		NumPartitions:     3,
		ReplicationFactor: 1,
		RetentionPeriod:   7 * 24 * time.Hour,
		RetentionSize:     1024 * 1024 * 100,
		MaxRetries:        3,
		RetryBackoff:      200 * time.Millisecond,
		ClientID:          "federation",
		Async:             true,
		BatchTimeout:      10 * time.Millisecond,
	}
}
