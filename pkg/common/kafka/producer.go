package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DeadLetterProducer forwards messages that can never be processed (malformed
// payloads) to a dead-letter topic so operators can inspect and replay them.
type DeadLetterProducer struct {
	writer *kafka.Writer
}

func NewDeadLetterProducer(brokers []string, topic string) *DeadLetterProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &DeadLetterProducer{writer: writer}
}

// Publish copies the original message verbatim and records where it came from
// and why it was rejected in the headers.
func (p *DeadLetterProducer) Publish(ctx context.Context, original kafka.Message, reason string) error {
	message := kafka.Message{
		Key:   original.Key,
		Value: original.Value,
		Headers: []kafka.Header{
			{Key: "dead-letter-reason", Value: []byte(reason)},
			{Key: "original-topic", Value: []byte(original.Topic)},
			{Key: "original-partition", Value: []byte(strconv.Itoa(original.Partition))},
			{Key: "original-offset", Value: []byte(strconv.FormatInt(original.Offset, 10))},
		},
	}

	return p.writer.WriteMessages(ctx, message)
}

func (p *DeadLetterProducer) Close() error {
	return p.writer.Close()
}
