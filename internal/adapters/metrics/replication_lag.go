package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// RegisterReplicationLagGauge exports the replication lag as an observable
// gauge, probing on each collection. Errors from the probe are swallowed so
// a flapping replica does not poison the whole scrape; the gauge simply
// reports nothing for that round.
func RegisterReplicationLagGauge(probe func(ctx context.Context) (lagBytes float64, hasReplica bool, err error)) error {
	meter := otel.Meter("hlsl/database")

	lagGauge, err := meter.Float64ObservableGauge(
		"backing/replication_lag_bytes",
		metric.WithDescription("Replication lag between the master and its furthest-behind replica"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create replication lag metric: %w", err)
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, observer metric.Observer) error {
		lagBytes, hasReplica, err := probe(ctx)
		if err != nil || !hasReplica {
			return nil
		}
		observer.ObserveFloat64(lagGauge, lagBytes)
		return nil
	}, lagGauge)
	if err != nil {
		return fmt.Errorf("failed to register replication lag callback: %w", err)
	}

	return nil
}
