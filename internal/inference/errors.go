package inference

import "errors"

// UnavailableError marks a transient backend failure: connection
// failures, connect/read timeouts, and an explicit 503 from the backend
// (cold start / model still loading). The retry loop branches on this
// tag and nothing else.
type UnavailableError struct {
	Detail string
}

func (e *UnavailableError) Error() string {
	return "inference backend unavailable: " + e.Detail
}

// BackendError marks a permanent backend failure: any non-success,
// non-503 status. It propagates immediately without retry.
type BackendError struct {
	Detail string
}

func (e *BackendError) Error() string {
	return "inference backend error: " + e.Detail
}

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsBackendError reports whether err is (or wraps) a BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
