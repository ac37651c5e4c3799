package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that an instance or a message is unknown.
	ErrNotFound = errors.New("harness: not found")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("harness: validation failed")
	// ErrAuthentication indicates that a backend rejected login credentials.
	ErrAuthentication = errors.New("harness: authentication failed")
	// ErrSessionNotReady indicates an operation attempted before login/listen completed.
	ErrSessionNotReady = errors.New("harness: session not ready")
	// ErrBackendTransport indicates a failure reported by the external messaging backend.
	ErrBackendTransport = errors.New("harness: backend transport failure")
)

// NotFoundError reports one unknown resource lookup.
type NotFoundError struct {
	// Resource names the looked-up resource type (for example "instance" or "message").
	Resource string
	// ID is the identifier that could not be resolved.
	ID string
}

// Error returns one operator-readable failure summary.
func (e *NotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Resource == "" {
		return fmt.Sprintf("%q not found", e.ID)
	}

	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is lets errors.Is match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewInstanceNotFound builds a NotFoundError for one instance id.
func NewInstanceNotFound(instanceID string) error {
	return &NotFoundError{Resource: "instance", ID: instanceID}
}

// NewMessageNotFound builds a NotFoundError for one message id.
func NewMessageNotFound(messageID string) error {
	return &NotFoundError{Resource: "message", ID: messageID}
}
