package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/logging"
	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/reporting"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeJSONResponse(ctx context.Context, w http.ResponseWriter, statusCode int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

// writeRawJSONResponse passes through a payload that is already serialized,
// like the cached byte payloads, without re-encoding it.
func writeRawJSONResponse(w http.ResponseWriter, statusCode int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(payload)
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, responseError error) {
	logging.FromContext(ctx).Error("Request failed", "error", responseError.Error())

	writeJSONResponse(ctx, w, statusCodeForError(responseError), errorResponse{
		Success: false,
		Cause:   responseError.Error(),
	})
}
