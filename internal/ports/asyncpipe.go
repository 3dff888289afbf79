package ports

import (
	"log/slog"
	"net/http"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/app"
)

type syncResponse struct {
	Status       string `json:"status"`
	Instance     string `json:"instance"`
	ProcessingMS int64  `json:"processing_ms"`
	ElapsedMS    int64  `json:"elapsed_ms"`
}

type asyncResponse struct {
	Status   string `json:"status"`
	Instance string `json:"instance"`
}

// MakeSyncHandler performs the work inline, blocking the request for the
// full processing time. The slow baseline for the async pipeline.
func MakeSyncHandler(
	processSync app.ProcessSync,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("sync", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		metrics.syncInProgress.Add(ctx, 1)
		defer metrics.syncInProgress.Add(ctx, -1)

		result, err := processSync(ctx)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, syncResponse{
			Status:       "completed",
			Instance:     result.Instance,
			ProcessingMS: result.ProcessingMS,
			ElapsedMS:    result.ElapsedMS,
		})
	}

	return middleware(handler)
}

// MakeAsyncHandler hands the work to the pipeline and acknowledges
// immediately.
func MakeAsyncHandler(
	produceAsync app.ProduceAsync,
	instanceID string,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("async", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		metrics.asyncInProgress.Add(ctx, 1)
		defer metrics.asyncInProgress.Add(ctx, -1)

		data := r.URL.Query().Get("data")
		if data == "" {
			data = "event"
		}

		if err := produceAsync(ctx, data); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusAccepted, asyncResponse{
			Status:   "accepted",
			Instance: instanceID,
		})
	}

	return middleware(handler)
}
