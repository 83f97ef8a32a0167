package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Consumer wraps a kafka-go reader with manual offset management. Commits are
// issued by the intake loop only after a message has reached a terminal
// outcome, so a crash before commit results in redelivery rather than loss.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader}
}

// Fetch blocks until a message is available or the context is cancelled. It
// does not advance the consumer group offset.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

// Commit marks the message as processed for the consumer group.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	return c.reader.CommitMessages(ctx, msg)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
