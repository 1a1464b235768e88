package api

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is returned when the last allowed attempt timed out
	ErrTimeout = errors.New("request timed out")
	// ErrUnknown is returned when the last attempt failed without a message
	ErrUnknown = errors.New("unknown error occurred")
)

// HTTPError represents a non-2xx response
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Error %d: %s\n%s", e.StatusCode, e.Status, string(e.Body))
}

// attemptTimeout marks an attempt aborted by its own timer
type attemptTimeout struct {
	err error
}

func (e *attemptTimeout) Error() string { return "attempt timed out: " + e.err.Error() }

func (e *attemptTimeout) Unwrap() error { return e.err }

func isAttemptTimeout(err error) bool {
	var t *attemptTimeout
	return errors.As(err, &t)
}
