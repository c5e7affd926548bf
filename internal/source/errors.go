package source

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the repository or path does not exist or is not visible.
	ErrNotFound = errors.New("source: not found")

	// ErrAccessDenied indicates the credentials in use may not read the resource.
	ErrAccessDenied = errors.New("source: access denied")
)

// RateLimitError is returned when the host throttles requests.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "source: rate limit exceeded"
	}
	return fmt.Sprintf("source: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied checks if the error indicates missing permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}
