package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no valid credential is available; calls
	// fail locally before hitting the network.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound means a referenced id is stale or unknown server-side.
	ErrNotFound = errors.New("not found")

	// ErrMalformedPayload means a response or push event failed to parse.
	ErrMalformedPayload = errors.New("malformed payload")
)

// ServerError is a non-2xx response carrying a structured error body.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request (status %d)", e.Status)
	}
	return fmt.Sprintf("server rejected request (status %d): %s", e.Status, e.Message)
}

// NetworkError wraps a transport-level failure (timeout, DNS, refused
// connection). The backend cold-starts, so these are expected and retryable
// at the caller's discretion.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
