package ports

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type portsMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter

	syncInProgress  metric.Int64UpDownCounter
	asyncInProgress metric.Int64UpDownCounter
}

var metrics portsMetricsCollection

func init() {
	const name = "hlsl/ports"
	meter := otel.Meter(name)

	requestCount, err := meter.Int64Counter(
		"ports/request_count",
		metric.WithDescription("Total number of requests received"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request count metric: %w", err))
	}

	requestDuration, err := meter.Float64Histogram(
		"ports/request_duration_seconds",
		metric.WithDescription("Processing time for received requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request duration metric: %w", err))
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"ports/active_requests",
		metric.WithDescription("Number of requests currently being served"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create active request metric: %w", err))
	}

	syncInProgress, err := meter.Int64UpDownCounter(
		"ports/sync_in_progress",
		metric.WithDescription("Number of blocking sync requests in flight"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create sync in progress metric: %w", err))
	}

	asyncInProgress, err := meter.Int64UpDownCounter(
		"ports/async_in_progress",
		metric.WithDescription("Number of async produce requests in flight"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create async in progress metric: %w", err))
	}

	metrics = portsMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		activeRequests:  activeRequests,
		syncInProgress:  syncInProgress,
		asyncInProgress: asyncInProgress,
	}
}

func buildMetricsMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			attributes := []attribute.KeyValue{
				attribute.String("method", r.Method),
				attribute.String("path", r.URL.Path),
			}
			attributesOption := metric.WithAttributes(attributes...)

			metrics.activeRequests.Add(ctx, 1, attributesOption)
			defer metrics.activeRequests.Add(ctx, -1, attributesOption)

			next(w, r)

			metrics.requestCount.Add(ctx, 1, attributesOption)
			metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), attributesOption)
		}
	}
}
