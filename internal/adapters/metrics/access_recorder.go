package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/app"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type accessMetricsCollection struct {
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	cacheWaits    metric.Int64Counter
	cacheErrors   metric.Int64Counter
	backingCalls  metric.Int64Counter
	queryDuration metric.Float64Histogram
}

var accessMetrics accessMetricsCollection

func init() {
	const name = "hlsl/cache"
	meter := otel.Meter(name)

	cacheHits, err := meter.Int64Counter(
		"cache/hits",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cache hit metric: %w", err))
	}

	cacheMisses, err := meter.Int64Counter(
		"cache/misses",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cache miss metric: %w", err))
	}

	cacheWaits, err := meter.Int64Counter(
		"cache/waits",
		metric.WithDescription("Total number of callers that waited for another caller's fetch"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cache wait metric: %w", err))
	}

	cacheErrors, err := meter.Int64Counter(
		"cache/errors",
		metric.WithDescription("Total number of failed cache operations"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create cache error metric: %w", err))
	}

	backingCalls, err := meter.Int64Counter(
		"backing/queries",
		metric.WithDescription("Total number of backing store queries"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create backing query metric: %w", err))
	}

	queryDuration, err := meter.Float64Histogram(
		"backing/query_duration_seconds",
		metric.WithDescription("Backing store query duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create backing query duration metric: %w", err))
	}

	accessMetrics = accessMetricsCollection{
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
		cacheWaits:    cacheWaits,
		cacheErrors:   cacheErrors,
		backingCalls:  backingCalls,
		queryDuration: queryDuration,
	}
}

// OTelAccessRecorder exports cache access outcomes through the global OTel
// meter provider.
type OTelAccessRecorder struct{}

var _ app.AccessRecorder = OTelAccessRecorder{}

func NewOTelAccessRecorder() OTelAccessRecorder {
	return OTelAccessRecorder{}
}

func (OTelAccessRecorder) Hit(ctx context.Context, endpoint string) {
	accessMetrics.cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

func (OTelAccessRecorder) Miss(ctx context.Context, endpoint string) {
	accessMetrics.cacheMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

func (OTelAccessRecorder) Wait(ctx context.Context, endpoint string) {
	accessMetrics.cacheWaits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

func (OTelAccessRecorder) CacheError(ctx context.Context, endpoint string, op string) {
	accessMetrics.cacheErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("operation", op),
	))
}

func (OTelAccessRecorder) FetchObserved(ctx context.Context, queryType string, endpoint string, duration time.Duration) {
	attributes := metric.WithAttributes(
		attribute.String("query_type", queryType),
		attribute.String("endpoint", endpoint),
	)
	accessMetrics.backingCalls.Add(ctx, 1, attributes)
	accessMetrics.queryDuration.Record(ctx, duration.Seconds(), attributes)
}
