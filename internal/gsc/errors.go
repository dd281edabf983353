package gsc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoValidToken means the token provider could not supply a usable token.
	// It is never retried by the engine.
	ErrNoValidToken = errors.New("no valid token")
	// ErrRateLimitExceeded means the fixed-window budget for a service is spent.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidDimension means a dimension name is outside the known catalog.
	ErrInvalidDimension = errors.New("invalid dimension")
	// ErrInvalidRequest covers other locally detected argument errors.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotIndexable is matched by NotIndexableError.
	ErrNotIndexable = errors.New("url not indexable")
	// ErrNotFound is returned by stores when a lookup has no result.
	ErrNotFound = errors.New("not found")
	// ErrSyncInProgress means a batch, or a sync of the same property, is
	// already running.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// RemoteAPIError is a non-2xx response from the remote API.
type RemoteAPIError struct {
	Operation string
	Code      int
	Message   string
}

func (e *RemoteAPIError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("remote api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: remote api error %d: %s", e.Operation, e.Code, e.Message)
}

// TransportError means the remote host could not be reached, the call timed
// out or the response could not be read.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotIndexableError short-circuits an indexing request whose inspection did
// not pass.
type NotIndexableError struct {
	URL    string
	Reason string
}

func (e *NotIndexableError) Error() string {
	return fmt.Sprintf("url %s not indexable: %s", e.URL, e.Reason)
}

// Is reports whether target is ErrNotIndexable.
func (e *NotIndexableError) Is(target error) bool {
	return target == ErrNotIndexable
}

// IsFatal reports whether err must stop a sync batch. Only a missing token
// qualifies; every other failure is contained per dimension set or property.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNoValidToken)
}
