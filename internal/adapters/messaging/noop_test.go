package messaging_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/messaging"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/config"
)

func TestNoopProducer(t *testing.T) {
	t.Parallel()

	producer := messaging.NoopProducer{}
	require.NoError(t, producer.Produce(t.Context(), []byte(`{"data":"event"}`)))
	require.NoError(t, producer.Close())
}

func TestNewProducerOrNoop(t *testing.T) {
	t.Run("development without brokers gets a noop producer", func(t *testing.T) {
		t.Setenv("HLSL_ENVIRONMENT", "development")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)

		producer, err := messaging.NewProducerOrNoop(conf)
		require.NoError(t, err)
		require.IsType(t, messaging.NoopProducer{}, producer)
	})

	t.Run("production without brokers fails", func(t *testing.T) {
		t.Setenv("HLSL_ENVIRONMENT", "production")
		t.Setenv("DATABASE_URL", "postgres://localhost:5432/hlsl")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("SENTRY_DSN", "https://public@sentry.example.com/1")

		_, err := config.ConfigFromEnv()
		require.Error(t, err)
	})

	t.Run("configured brokers get a kafka producer", func(t *testing.T) {
		t.Setenv("HLSL_ENVIRONMENT", "development")
		t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)

		producer, err := messaging.NewProducerOrNoop(conf)
		require.NoError(t, err)
		require.NoError(t, producer.Close())
		require.IsType(t, &messaging.KafkaProducer{}, producer)
	})
}
