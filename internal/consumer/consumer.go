// Package consumer ingests classified events from the events.classified
// Kafka topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/alert-engine/internal/events"
	kafkautil "github.com/afikmenashe/alert-engine/pkg/kafka"
)

// DefaultTopic is the topic the classification pipeline publishes to.
const DefaultTopic = "events.classified"

// Consumer wraps a Kafka reader for classified events.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a consumer with explicit commits for at-least-once
// delivery.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)
	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	cfg := kafkautil.NewReaderConfig(brokerList, topic, groupID)
	// Offsets are committed per message after ingestion.
	cfg.CommitInterval = 0
	kafkautil.LogReaderConfig(cfg)

	return &Consumer{
		reader: kafka.NewReader(cfg),
		topic:  topic,
	}, nil
}

// ReadMessage fetches the next message and decodes it. A decode failure
// still returns the raw message so the caller can commit past it.
func (c *Consumer) ReadMessage(ctx context.Context) (*events.Classified, *kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	event, err := Decode(msg.Value)
	if err != nil {
		return nil, &msg, err
	}
	return event, &msg, nil
}

// CommitMessage commits the offset of msg.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, *msg); err != nil {
		return fmt.Errorf("failed to commit offset: %w", err)
	}
	return nil
}

// Close closes the Kafka reader.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	return nil
}

// Decode parses one classified event.
func Decode(data []byte) (*events.Classified, error) {
	var event events.Classified
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal classified event: %w", err)
	}
	if event.Article.URL == "" && event.Article.Title == "" {
		return nil, fmt.Errorf("classified event has no article")
	}
	return &event, nil
}
