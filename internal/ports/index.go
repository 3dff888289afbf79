package ports

import (
	"log/slog"
	"net/http"
)

type indexResponse struct {
	Service   string   `json:"service"`
	Instance  string   `json:"instance"`
	Endpoints []string `json:"endpoints"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Instance string `json:"instance"`
	Kafka    string `json:"kafka"`
}

func MakeIndexHandler(
	instanceID string,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("index", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(r.Context(), w, http.StatusOK, indexResponse{
			Service:  "high-load-systems-lab",
			Instance: instanceID,
			Endpoints: []string{
				"GET /health",
				"GET /api/data",
				"GET /api/slow",
				"GET /api/random_error",
				"GET /api/products/db",
				"GET /api/products/cached",
				"GET /api/users/cached",
				"POST /cache/invalidate",
				"GET /cache/stats",
				"POST /write",
				"GET /read",
				"GET /read/master",
				"GET /read/replica",
				"POST /bulk-insert",
				"GET /replication-lag",
				"GET /set-replica-percent/{percent}",
				"GET /sync",
				"GET /async",
				"GET /metrics",
			},
		})
	}

	return middleware(handler)
}

func MakeHealthHandler(
	instanceID string,
	kafkaEnabled bool,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("health", rootLogger, sentryMiddleware)

	kafkaStatus := "disabled"
	if kafkaEnabled {
		kafkaStatus = "up"
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(r.Context(), w, http.StatusOK, healthResponse{
			Status:   "healthy",
			Instance: instanceID,
			Kafka:    kafkaStatus,
		})
	}

	return middleware(handler)
}
