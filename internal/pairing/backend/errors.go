package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend calls.
var (
	// ErrUnreachable means the request never produced an HTTP response.
	ErrUnreachable = errors.New("backend unreachable")

	// ErrRequestFailed means the backend answered with a non-2xx, non-5xx status.
	ErrRequestFailed = errors.New("backend rejected request")

	// ErrServerError means the backend answered with a 5xx status.
	ErrServerError = errors.New("backend server error")

	// ErrBadResponse means a 2xx body could not be decoded.
	ErrBadResponse = errors.New("malformed backend response")
)

// Error describes a failed backend call.
type Error struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func statusError(endpoint string, status int, body []byte) *Error {
	sentinel := ErrRequestFailed
	if status >= 500 {
		sentinel = ErrServerError
	}
	return &Error{
		Endpoint:   endpoint,
		StatusCode: status,
		Body:       string(body),
		Err:        sentinel,
	}
}
