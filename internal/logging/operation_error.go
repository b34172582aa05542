package logging

import (
	"errors"
	"fmt"
)

// OperationError annotates an error with the operation that produced it and,
// when known, the request it belonged to.
type OperationError struct {
	Operation string
	RequestID string
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s (request_id=%s): %v", e.Operation, e.RequestID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps err with structured context about where it occurred.
// It returns nil for a nil err so call sites can wrap unconditionally.
func NewOperationError(operation, requestID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: requestID, Err: err}
}

// OperationOf reports the outermost operation recorded on err, if any.
func OperationOf(err error) (string, bool) {
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		return "", false
	}
	return opErr.Operation, true
}
