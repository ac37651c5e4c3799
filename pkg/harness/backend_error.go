package harness

import (
	"errors"
	"fmt"
	"strings"
)

// BackendOperation identifies one session collaborator operation.
type BackendOperation string

const (
	// BackendOperationLogin identifies login calls.
	BackendOperationLogin BackendOperation = "login"
	// BackendOperationLogout identifies logout calls.
	BackendOperationLogout BackendOperation = "logout"
	// BackendOperationListen identifies event delivery start.
	BackendOperationListen BackendOperation = "listen"
	// BackendOperationSend identifies payload sends.
	BackendOperationSend BackendOperation = "send"
	// BackendOperationFingerprint identifies fingerprint lookups.
	BackendOperationFingerprint BackendOperation = "fingerprint"
)

// BackendErrorKind classifies collaborator failures.
type BackendErrorKind string

const (
	// BackendErrorKindAuthentication indicates rejected credentials.
	BackendErrorKindAuthentication BackendErrorKind = "authentication"
	// BackendErrorKindTransport indicates network or protocol failure.
	BackendErrorKindTransport BackendErrorKind = "transport"
	// BackendErrorKindUnknown indicates unclassified failure.
	BackendErrorKindUnknown BackendErrorKind = "unknown"
)

// BackendError carries structured metadata for one collaborator failure.
type BackendError struct {
	// Operation identifies which collaborator operation failed.
	Operation BackendOperation
	// Kind classifies the failure.
	Kind BackendErrorKind
	// Backend names the backend the session talks to when known.
	Backend string
	// Code carries an optional backend status code.
	Code int
	// Message is the human-readable backend message, preserved verbatim.
	Message string
	// Cause is the wrapped transport error.
	Cause error
}

// Error returns one operator-readable failure summary.
func (e *BackendError) Error() string {
	if e == nil {
		return "<nil>"
	}

	fields := make([]string, 0, 4)
	if operation := strings.TrimSpace(string(e.Operation)); operation != "" {
		fields = append(fields, "operation="+operation)
	}
	if kind := strings.TrimSpace(string(e.Kind)); kind != "" {
		fields = append(fields, "kind="+kind)
	}
	if backend := strings.TrimSpace(e.Backend); backend != "" {
		fields = append(fields, "backend="+backend)
	}
	if e.Code != 0 {
		fields = append(fields, fmt.Sprintf("code=%d", e.Code))
	}

	summary := "backend error"
	if len(fields) > 0 {
		summary += ": " + strings.Join(fields, " ")
	}
	if e.Message != "" {
		summary += ": " + e.Message
	}
	if e.Cause != nil {
		summary += ": " + e.Cause.Error()
	}

	return summary
}

// Unwrap returns the wrapped root cause.
func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// Is maps the failure kind onto the package sentinels.
func (e *BackendError) Is(target error) bool {
	if e == nil {
		return false
	}

	switch target {
	case ErrAuthentication:
		return e.Kind == BackendErrorKindAuthentication
	case ErrBackendTransport:
		return e.Kind != BackendErrorKindAuthentication
	default:
		return false
	}
}

// AsBackendError extracts one BackendError from wrapped error chains.
func AsBackendError(err error) (*BackendError, bool) {
	if err == nil {
		return nil, false
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr, true
	}

	return nil, false
}

// UserMessage returns the human-readable backend message carried by err, if any.
func UserMessage(err error) (string, bool) {
	backendErr, ok := AsBackendError(err)
	if !ok || backendErr == nil || strings.TrimSpace(backendErr.Message) == "" {
		return "", false
	}

	return backendErr.Message, true
}
