package client

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the Store. Neither is user-visible: stale
// events are dropped, and optimistic conflicts are resolved by queueing
// inside the Coordinator.
var (
	// ErrStaleEvent reports a write whose logical version is older than
	// the state already cached for the key.
	ErrStaleEvent = errors.New("stale event: cached state is newer")

	// ErrOptimisticConflict reports an optimistic write on a key that
	// already has a pending patch from a different mutation.
	ErrOptimisticConflict = errors.New("optimistic write already pending for key")
)

// ValidationError reports a local precondition failure. It is raised
// before any network call and never touches the cache.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthorizationError reports a mutation the backend rejected on
// permission grounds (401/403). The Coordinator rolls back the
// optimistic patch and surfaces a "not allowed" toast.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NetworkError wraps a transport-level failure (connection refused,
// DNS, broken pipe). Triggers optimistic rollback.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError wraps a deadline exceeded while waiting for the backend.
// Treated exactly like NetworkError: rollback and toast.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("request timed out: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// APIError is any other structured error returned by the backend,
// carrying its HTTP status and application error code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}
