package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

var _ Producer = (*KafkaProducer)(nil)

// NewKafkaProducer builds a producer that waits for acknowledgement from
// all in-sync replicas before reporting success.
func NewKafkaProducer(brokers string, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &KafkaProducer{
		writer: writer,
		topic:  topic,
	}
}

func (p *KafkaProducer) Produce(ctx context.Context, payload []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Value: payload})
	if err != nil {
		messagingMetrics.producerErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", p.topic),
		))
		return fmt.Errorf("failed to produce message: %w", err)
	}

	messagingMetrics.messagesProduced.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", p.topic),
	))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// Consumer reads from the async pipeline in a background goroutine,
// simulating per-message work and committing offsets manually after each
// message is processed.
type Consumer struct {
	reader     *kafka.Reader
	topic      string
	instanceID string

	// Simulated per-message processing time.
	workDuration time.Duration
}

type ConsumerOption func(*Consumer)

func WithWorkDuration(workDuration time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.workDuration = workDuration
	}
}

func NewConsumer(brokers string, topic string, instanceID string, options ...ConsumerOption) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(brokers, ","),
		Topic:   topic,
		GroupID: "async_consumer_group",
	})

	consumer := &Consumer{
		reader:       reader,
		topic:        topic,
		instanceID:   instanceID,
		workDuration: 50 * time.Millisecond,
	}
	for _, option := range options {
		option(consumer)
	}
	return consumer
}

// Run consumes until ctx is canceled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGroupClosed) {
				// Shutdown, not a failure
				return nil
			}
			messagingMetrics.consumerErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("topic", c.topic),
				attribute.String("operation", "fetch"),
			))
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		select {
		case <-time.After(c.workDuration):
		case <-ctx.Done():
			return nil
		}

		messagingMetrics.messagesConsumed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", c.topic),
			attribute.String("instance", c.instanceID),
		))

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			messagingMetrics.consumerErrors.Add(ctx, 1, metric.WithAttributes(
				attribute.String("topic", c.topic),
				attribute.String("operation", "commit"),
			))
			return fmt.Errorf("failed to commit message: %w", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
