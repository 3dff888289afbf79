package ports

import (
	"log/slog"
	"net/http"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/cachestore"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/app"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/logging"
)

type invalidateResponse struct {
	Success     bool `json:"success"`
	Invalidated int  `json:"invalidated"`
}

type cacheStatsResponse struct {
	Keys            int64  `json:"keys"`
	UsedMemoryBytes int64  `json:"used_memory_bytes"`
	UsedMemoryHuman string `json:"used_memory_human"`
	PeakMemoryHuman string `json:"peak_memory_human"`
}

// MakeCacheInvalidateHandler flushes cache entries. Runs concurrently with
// the access path: an in-flight population may land just after the flush.
func MakeCacheInvalidateHandler(
	accessor *app.CacheAside,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("cacheinvalidate", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		pattern := r.URL.Query().Get("pattern")
		if pattern == "" {
			pattern = "*"
		}

		count, err := accessor.Invalidate(ctx, pattern)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		logging.FromContext(ctx).Info("Invalidated cache", "pattern", pattern, "invalidated", count)

		writeJSONResponse(ctx, w, http.StatusOK, invalidateResponse{
			Success:     true,
			Invalidated: count,
		})
	}

	return middleware(handler)
}

func MakeCacheStatsHandler(
	store cachestore.Store,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("cachestats", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		stats, err := store.Stats(ctx)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, cacheStatsResponse{
			Keys:            stats.Keys,
			UsedMemoryBytes: stats.UsedMemoryBytes,
			UsedMemoryHuman: stats.UsedMemoryHuman,
			PeakMemoryHuman: stats.PeakMemoryHuman,
		})
	}

	return middleware(handler)
}
