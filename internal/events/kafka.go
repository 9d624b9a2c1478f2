package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shopstack/syncqueue/internal/core"
)

var (
	// ErrKafkaSinkClosed is returned when publishing to a closed sink.
	ErrKafkaSinkClosed = errors.New("kafka event sink is closed")
)

// KafkaSink publishes queue lifecycle events to a Kafka topic, giving
// operators an audit trail of what was deferred and how each replay
// attempt went.
type KafkaSink struct {
	writer *kafka.Writer
	mu     sync.RWMutex
	closed bool
}

// KafkaSinkConfig holds configuration for the Kafka event sink.
type KafkaSinkConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int // 0, 1, or -1 (all)
}

// NewKafkaSink creates a Kafka-backed event sink.
func NewKafkaSink(config KafkaSinkConfig) (*KafkaSink, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = 10 * time.Millisecond
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
		Async:        false,
	}

	log.Printf("[EVENTS] Kafka sink ready (brokers: %v, topic: %s)", config.Brokers, config.Topic)
	return &KafkaSink{writer: writer}, nil
}

// Publish writes one event to the topic, keyed by operation ID so that a
// single operation's history lands in one partition.
func (k *KafkaSink) Publish(ctx context.Context, event core.Event) error {
	k.mu.RLock()
	if k.closed {
		k.mu.RUnlock()
		return ErrKafkaSinkClosed
	}
	k.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OperationID),
		Value: data,
		Time:  event.Timestamp,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event to Kafka: %w", err)
	}
	return nil
}

// Close closes the Kafka writer.
func (k *KafkaSink) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	k.mu.Unlock()

	return k.writer.Close()
}
