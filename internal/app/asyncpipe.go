package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/messaging"
	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
)

// SyncResult reports how long the blocking path actually took.
type SyncResult struct {
	Instance     string
	ProcessingMS int64
	ElapsedMS    int64
}

// ProcessSync simulates a blocking unit of work.
type ProcessSync func(ctx context.Context) (SyncResult, error)

// ProduceAsync hands the same unit of work to the pipeline and returns
// immediately.
type ProduceAsync func(ctx context.Context, data string) error

func BuildProcessSync(processingTime time.Duration, instanceID string) ProcessSync {
	return func(ctx context.Context) (SyncResult, error) {
		start := time.Now()

		select {
		case <-time.After(processingTime):
		case <-ctx.Done():
			return SyncResult{}, ctx.Err()
		}

		return SyncResult{
			Instance:     instanceID,
			ProcessingMS: processingTime.Milliseconds(),
			ElapsedMS:    time.Since(start).Milliseconds(),
		}, nil
	}
}

type asyncMessage struct {
	Timestamp string `json:"timestamp"`
	Instance  string `json:"instance"`
	Data      string `json:"data"`
}

func BuildProduceAsync(producer messaging.Producer, instanceID string, nowFunc func() time.Time) ProduceAsync {
	return func(ctx context.Context, data string) error {
		payload, err := json.Marshal(asyncMessage{
			Timestamp: nowFunc().UTC().Format(time.RFC3339Nano),
			Instance:  instanceID,
			Data:      data,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal async message: %w", err)
		}

		if err := producer.Produce(ctx, payload); err != nil {
			return fmt.Errorf("%w: %w", e.APIServerError, err)
		}
		return nil
	}
}
