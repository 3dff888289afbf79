package ports

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/database"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/app"
	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/logging"
)

type itemResponse struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Data      string `json:"data,omitempty"`
	CreatedAt string `json:"created_at"`
}

type writeItemRequest struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

type writeItemResponse struct {
	Success bool         `json:"success"`
	Target  string       `json:"target"`
	Item    itemResponse `json:"item"`
}

type readItemsResponse struct {
	Target string         `json:"target"`
	Count  int            `json:"count"`
	Items  []itemResponse `json:"items"`
}

type countItemsResponse struct {
	Target string `json:"target"`
	Count  int    `json:"count"`
}

type bulkInsertRequest struct {
	Count int `json:"count"`
	Size  int `json:"size"`
}

type bulkInsertResponse struct {
	Success  bool `json:"success"`
	Inserted int  `json:"inserted"`
}

type replicationLagResponse struct {
	HasReplica bool    `json:"has_replica"`
	LagBytes   float64 `json:"lag_bytes"`
}

type setReplicaPercentResponse struct {
	Success        bool `json:"success"`
	ReplicaPercent int  `json:"replica_percent"`
}

func MakeWriteItemHandler(
	writeItem app.WriteItem,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("writeitem", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request writeItemRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeErrorResponse(ctx, w, fmt.Errorf("%w: invalid request body: %w", e.APIClientError, err))
			return
		}

		item, err := writeItem(ctx, request.Name, request.Data)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		// Writes always go to the master
		writeJSONResponse(ctx, w, http.StatusCreated, writeItemResponse{
			Success: true,
			Target:  string(database.TargetMaster),
			Item: itemResponse{
				ID:        item.ID,
				Name:      item.Name,
				Data:      item.Data,
				CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
			},
		})
	}

	return middleware(handler)
}

func MakeReadItemsHandler(
	readItems app.ReadItems,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("readitems", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		items, target, err := readItems(ctx)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		logging.FromContext(ctx).Info("Routed read", "target", string(target))

		responses := make([]itemResponse, len(items))
		for i, item := range items {
			responses[i] = itemResponse{
				ID:        item.ID,
				Name:      item.Name,
				Data:      item.Data,
				CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
			}
		}

		writeJSONResponse(ctx, w, http.StatusOK, readItemsResponse{
			Target: string(target),
			Count:  len(responses),
			Items:  responses,
		})
	}

	return middleware(handler)
}

// MakeCountItemsHandler serves the explicitly targeted read endpoints
// (/read/master and /read/replica).
func MakeCountItemsHandler(
	countItems app.CountItems,
	target database.Target,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares(fmt.Sprintf("read%s", target), rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		count, err := countItems(ctx, target)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, countItemsResponse{
			Target: string(target),
			Count:  count,
		})
	}

	return middleware(handler)
}

func MakeBulkInsertHandler(
	bulkInsertItems app.BulkInsertItems,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("bulkinsert", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Defaults sized to provoke visible replication lag
		request := bulkInsertRequest{Count: 1000, Size: 1000}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
				writeErrorResponse(ctx, w, fmt.Errorf("%w: invalid request body: %w", e.APIClientError, err))
				return
			}
		}

		inserted, err := bulkInsertItems(ctx, request.Count, request.Size)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusCreated, bulkInsertResponse{
			Success:  true,
			Inserted: inserted,
		})
	}

	return middleware(handler)
}

func MakeReplicationLagHandler(
	getReplicationLag app.GetReplicationLag,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("replicationlag", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		lagBytes, hasReplica, err := getReplicationLag(ctx)
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeJSONResponse(ctx, w, http.StatusOK, replicationLagResponse{
			HasReplica: hasReplica,
			LagBytes:   lagBytes,
		})
	}

	return middleware(handler)
}

// MakeSetReplicaPercentHandler adjusts the read-routing split at runtime.
func MakeSetReplicaPercentHandler(
	routed *database.Routed,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := buildStandardMiddlewares("setreplicapercent", rootLogger, sentryMiddleware)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rawPercent := r.PathValue("percent")
		percent, err := strconv.Atoi(rawPercent)
		if err != nil {
			writeErrorResponse(ctx, w, fmt.Errorf("%w: invalid percent %q", e.APIClientError, rawPercent))
			return
		}

		applied := routed.SetReplicaPercent(percent)
		logging.FromContext(ctx).Info("Set replica read percent", "requested", percent, "applied", applied)

		writeJSONResponse(ctx, w, http.StatusOK, setReplicaPercentResponse{
			Success:        true,
			ReplicaPercent: applied,
		})
	}

	return middleware(handler)
}
