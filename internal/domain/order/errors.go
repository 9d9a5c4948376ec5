package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrRecordNotFound is returned by Finder when no record has the order id.
var ErrRecordNotFound = errors.New("order not found")

// Validation messages returned to the buyer.
const (
	MsgMissingField = "Missing or invalid order field"
	MsgInvalidPhone = "Please enter a valid 11-digit Bangladesh mobile number (e.g. 01712345678)"
)

// ValidationError rejects a malformed order. Field names the offending
// request field; Message is safe to show to the buyer.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func missing(field string) *ValidationError {
	return &ValidationError{Field: field, Message: MsgMissingField + ": " + field}
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// AuditSinkError means the order record could not be stored, so the order
// was not placed.
type AuditSinkError struct {
	OrderID string
	Err     error
}

func (e *AuditSinkError) Error() string {
	return fmt.Sprintf("audit order %s: %v", e.OrderID, e.Err)
}

func (e *AuditSinkError) Unwrap() error {
	return e.Err
}
