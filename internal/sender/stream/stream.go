// Package stream publishes notifications to a Kafka topic for downstream
// consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/alert-engine/internal/notification"
)

// Channel is the channel name this sender is registered under.
const Channel = "kafka"

// MessageWriter is implemented by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sender writes each notification as one JSON message keyed by its id.
type Sender struct {
	writer MessageWriter
}

// NewSender creates a stream sender around a configured writer.
func NewSender(w MessageWriter) *Sender {
	return &Sender{writer: w}
}

// Type returns the channel this sender handles.
func (s *Sender) Type() string {
	return Channel
}

// Send writes the notification to the topic.
func (s *Sender) Send(ctx context.Context, n *notification.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "rule_id", Value: []byte(n.RuleID)},
			{Key: "severity", Value: []byte(n.Severity)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write notification to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *Sender) Close() error {
	return s.writer.Close()
}
