package ports

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
)

// Demo endpoints with synthetic latency and failure profiles, kept as
// known-shape targets for load tests and dashboards.

type demoResponse struct {
	Message   string `json:"message"`
	DelayMS   int64  `json:"delay_ms"`
	Timestamp string `json:"timestamp"`
}

type demoOptions struct {
	randFunc  func(n int) int
	sleepFunc func(ctx context.Context, d time.Duration) error
}

type DemoOption func(*demoOptions)

func WithDemoRandFunc(randFunc func(n int) int) DemoOption {
	return func(o *demoOptions) {
		o.randFunc = randFunc
	}
}

func WithDemoSleepFunc(sleepFunc func(ctx context.Context, d time.Duration) error) DemoOption {
	return func(o *demoOptions) {
		o.sleepFunc = sleepFunc
	}
}

func newDemoOptions(options []DemoOption) demoOptions {
	o := demoOptions{
		randFunc: rand.Intn,
		sleepFunc: func(ctx context.Context, d time.Duration) error {
			select {
			case <-time.After(d):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	for _, option := range options {
		option(&o)
	}
	return o
}

// MakeDataHandler responds after 10-300ms of jitter.
func MakeDataHandler(
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	options ...DemoOption,
) http.HandlerFunc {
	o := newDemoOptions(options)
	middleware := buildStandardMiddlewares("data", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		delay := time.Duration(10+o.randFunc(291)) * time.Millisecond
		if err := o.sleepFunc(ctx, delay); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, demoResponse{
			Message:   "data ready",
			DelayMS:   delay.Milliseconds(),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return middleware(handler)
}

// MakeSlowHandler responds after 0.5-2s.
func MakeSlowHandler(
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	options ...DemoOption,
) http.HandlerFunc {
	o := newDemoOptions(options)
	middleware := buildStandardMiddlewares("slow", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		delay := time.Duration(500+o.randFunc(1501)) * time.Millisecond
		if err := o.sleepFunc(ctx, delay); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, demoResponse{
			Message:   "slow operation completed",
			DelayMS:   delay.Milliseconds(),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return middleware(handler)
}

// MakeRandomErrorHandler fails roughly 10% of requests.
func MakeRandomErrorHandler(
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	options ...DemoOption,
) http.HandlerFunc {
	o := newDemoOptions(options)
	middleware := buildStandardMiddlewares("randomerror", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if o.randFunc(10) == 0 {
			writeErrorResponse(ctx, w, fmt.Errorf("%w: injected failure", e.APIServerError))
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, demoResponse{
			Message:   "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	return middleware(handler)
}
