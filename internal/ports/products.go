package ports

import (
	"log/slog"
	"net/http"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/app"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/logging"
)

// MakeGetCachedPayloadHandler serves a coalesced cache-aside read. The
// access path outcome is exposed in the X-Cache-Source header and logged;
// the payload body is identical no matter which path produced it.
func MakeGetCachedPayloadHandler(
	port string,
	getPayload app.GetPayload,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	extraMiddlewares ...func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares(port, rootLogger, sentryMiddleware, extraMiddlewares...)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, source, err := getPayload(ctx)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		logging.FromContext(ctx).Info("Served cached payload", "source", string(source))

		w.Header().Set("X-Cache-Source", string(source))
		writeRawJSONResponse(w, http.StatusOK, payload)
	}

	return middleware(handler)
}

// MakeGetUncachedPayloadHandler serves the uncached baseline read.
func MakeGetUncachedPayloadHandler(
	port string,
	getPayload app.GetUncachedPayload,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	extraMiddlewares ...func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares(port, rootLogger, sentryMiddleware, extraMiddlewares...)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := getPayload(ctx)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeRawJSONResponse(w, http.StatusOK, payload)
	}

	return middleware(handler)
}
