package remote

import (
	"errors"
	"fmt"
)

// TransportError means the remote service could not be reached or the
// connection failed before a status code was received.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError means the service answered with a non-success status, or with a
// success status whose body did not match the expected schema (Err set).
type RemoteError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid response (HTTP %d): %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Operation, e.Body, e.StatusCode)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status from a *RemoteError in err's chain, or 0.
func StatusCode(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
