package domain

import (
	"errors"
	"fmt"
)

// Failure taxonomy. The orchestrator treats all of them the same way, the
// distinction only shows up in logs and decision records.
var (
	ErrNetwork           = errors.New("network error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrMalformedEvent    = errors.New("malformed event")
	ErrMissingSetting    = errors.New("missing setting")
)

// HTTPStatusError is returned when an external API answers with a non-2xx
// status. It matches ErrNetwork under errors.Is.
type HTTPStatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Status)
}

// Is reports HTTPStatusError as a network failure.
func (e *HTTPStatusError) Is(target error) bool { return target == ErrNetwork }
