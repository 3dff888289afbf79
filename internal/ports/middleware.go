package ports

import (
	"log/slog"
	"net/http"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/logging"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/ratelimiting"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

// buildStandardMiddlewares is the chain every port goes through:
// request logging, crash reporting, report metadata, request metrics, and
// then any port-specific middleware like rate limiting.
func buildStandardMiddlewares(
	port string,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	extra ...func(http.HandlerFunc) http.HandlerFunc,
) func(http.HandlerFunc) http.HandlerFunc {
	middlewares := []func(http.HandlerFunc) http.HandlerFunc{
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware(port),
		buildMetricsMiddleware(),
	}
	middlewares = append(middlewares, extra...)

	return ComposeMiddlewares(middlewares...)
}
