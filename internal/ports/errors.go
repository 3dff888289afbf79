package ports

import (
	"errors"
	"net/http"

	e "github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/errors"
)

func statusCodeForError(responseError error) int {
	// Unknown error: default to 500
	statusCode := http.StatusInternalServerError

	if errors.Is(responseError, e.APIServerError) {
		statusCode = http.StatusInternalServerError
	} else if errors.Is(responseError, e.APIClientError) {
		statusCode = http.StatusBadRequest
	} else if errors.Is(responseError, e.RatelimitExceededError) {
		statusCode = http.StatusTooManyRequests
	} else if errors.Is(responseError, e.CoordinationTimeoutError) {
		// Checked before the backing store sentinel: a fallback fetch
		// failure after a wait timeout wraps both.
		statusCode = http.StatusGatewayTimeout
	} else if errors.Is(responseError, e.BackingStoreUnavailableError) {
		statusCode = http.StatusServiceUnavailable
	}

	return statusCode
}
