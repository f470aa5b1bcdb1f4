package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyUnauthorized means the upstream rejected the credential
	// outright (HTTP 401) — the key is invalid or has been revoked.
	ErrKeyUnauthorized = errors.New("provider: key unauthorized")

	// ErrRateLimited means the upstream throttled the request (HTTP 429).
	ErrRateLimited = errors.New("provider: rate limited")

	// ErrQuotaExceeded means the key is live but its account is out of
	// quota (HTTP 403).
	ErrQuotaExceeded = errors.New("provider: quota exceeded")

	// ErrTimeout means the bounded call deadline elapsed before the
	// upstream responded.
	ErrTimeout = errors.New("provider: request timed out")
)

// StatusError reports an upstream HTTP status outside the mapped set.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider: upstream returned status %d", e.Code)
}
