package messaging

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type messagingMetricsCollection struct {
	messagesProduced metric.Int64Counter
	messagesConsumed metric.Int64Counter
	producerErrors   metric.Int64Counter
	consumerErrors   metric.Int64Counter
}

var messagingMetrics messagingMetricsCollection

func init() {
	const name = "hlsl/messaging"
	meter := otel.Meter(name)

	messagesProduced, err := meter.Int64Counter(
		"kafka/messages_produced",
		metric.WithDescription("Total number of messages produced to kafka"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create produced message metric: %w", err))
	}

	messagesConsumed, err := meter.Int64Counter(
		"kafka/messages_consumed",
		metric.WithDescription("Total number of messages consumed from kafka"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create consumed message metric: %w", err))
	}

	producerErrors, err := meter.Int64Counter(
		"kafka/producer_errors",
		metric.WithDescription("Total number of failed kafka produce calls"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create producer error metric: %w", err))
	}

	consumerErrors, err := meter.Int64Counter(
		"kafka/consumer_errors",
		metric.WithDescription("Total number of failed kafka fetch/commit calls"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create consumer error metric: %w", err))
	}

	messagingMetrics = messagingMetricsCollection{
		messagesProduced: messagesProduced,
		messagesConsumed: messagesConsumed,
		producerErrors:   producerErrors,
		consumerErrors:   consumerErrors,
	}
}
