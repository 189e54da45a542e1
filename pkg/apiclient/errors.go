package apiclient

import (
	"errors"
	"fmt"
)

// ErrServerBusy is matched by errors.Is when the server kept answering 429.
var ErrServerBusy = errors.New("server is busy, please try again shortly")

// TransientServerError is returned once the retry budget for rate-limited
// responses is spent.
type TransientServerError struct {
	StatusCode int
	Attempts   int
}

func (e *TransientServerError) Error() string {
	return fmt.Sprintf("server busy after %d attempts (status %d)", e.Attempts, e.StatusCode)
}

func (e *TransientServerError) Is(target error) bool {
	return target == ErrServerBusy
}

// NetworkUnavailableError means the backend could not be reached at all.
type NetworkUnavailableError struct {
	Attempts int
	Err      error
}

func (e *NetworkUnavailableError) Error() string {
	return fmt.Sprintf("backend unreachable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *NetworkUnavailableError) Unwrap() error {
	return e.Err
}

// APIError is a request the server rejected with an error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    any
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
