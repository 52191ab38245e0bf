package codeassist

import (
	"errors"
	"fmt"
)

// ErrEndpointsExhausted is returned when every backend host failed with
// a transient status or transport error.
var ErrEndpointsExhausted = errors.New("all backend endpoints failed")

// RejectedError is a non-retryable backend status. Dispatch aborts
// immediately without trying further hosts.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected request (status %d): %s", e.Status, e.Body)
}

// StreamFault is a transport or backend error raised after a stream has
// begun. It cannot be retried against another host since partial output
// may already have been delivered.
type StreamFault struct {
	Message string
}

func (e *StreamFault) Error() string {
	return "stream fault: " + e.Message
}
