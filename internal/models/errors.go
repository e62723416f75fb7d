// Package models holds the inbox domain entities and the error taxonomy
// shared across the synchronization core.
package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the sync core's failure taxonomy. Callers classify
// with errors.Is; the typed wrappers below carry operation context.
var (
	// ErrValidation marks input rejected before any optimistic apply.
	ErrValidation = errors.New("validation failed")

	// ErrAuth marks an operation refused because no authenticated user is
	// available. Nothing is applied and nothing needs rollback.
	ErrAuth = errors.New("no authenticated user")

	// ErrNetwork marks a transient backend failure. Scheduled refreshes do
	// not retry immediately; the next tick is the retry.
	ErrNetwork = errors.New("backend unreachable")

	// ErrSubscription marks a push channel that failed to establish. The
	// cache still functions via polling.
	ErrSubscription = errors.New("push subscription failed")

	// ErrUnknownFilter marks an unrecognized thread filter string.
	ErrUnknownFilter = errors.New("unknown thread filter")

	// ErrNotFound marks a thread or message id the store does not know.
	ErrNotFound = errors.New("not found")
)

// OpError wraps a failure with the operation and entity it belongs to, so
// logs and toasts can say what failed for which thread.
type OpError struct {
	// Op is the operation name, e.g. "archive" or "send_reply".
	Op string

	// EntityID is the thread or message id the operation targeted.
	EntityID string

	// Err is the underlying cause.
	Err error
}

func (e *OpError) Error() string {
	if e.EntityID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err with operation context. Returns nil for a nil err.
func NewOpError(op, entityID string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, EntityID: entityID, Err: err}
}
