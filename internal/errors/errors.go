package errors

import "errors"

var (
	APIServerError         = errors.New("Server error")
	APIClientError         = errors.New("Client error")
	RatelimitExceededError = errors.New("Ratelimit exceeded")

	CacheUnavailableError        = errors.New("Cache unavailable")
	BackingStoreUnavailableError = errors.New("Backing store unavailable")
	CoordinationTimeoutError     = errors.New("Coordination timeout")
)
