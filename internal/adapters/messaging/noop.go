package messaging

import (
	"context"
	"fmt"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/config"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/logging"
)

// NoopProducer accepts and drops messages. Used in development when no
// broker is configured so the async endpoints still respond.
type NoopProducer struct{}

var _ Producer = NoopProducer{}

func (NoopProducer) Produce(ctx context.Context, payload []byte) error {
	logging.FromContext(ctx).Debug("Dropping message: no broker configured", "bytes", len(payload))
	return nil
}

func (NoopProducer) Close() error {
	return nil
}

// NewProducerOrNoop returns a kafka producer when brokers are configured,
// and a noop producer in development otherwise.
func NewProducerOrNoop(conf config.Config) (Producer, error) {
	if conf.KafkaBrokers() != "" {
		return NewKafkaProducer(conf.KafkaBrokers(), conf.KafkaTopic()), nil
	}

	if conf.IsDevelopment() {
		return NoopProducer{}, nil
	}

	return nil, fmt.Errorf("missing KAFKA_BOOTSTRAP_SERVERS in non-development environment")
}
