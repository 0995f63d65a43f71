package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed input before any state change or
// gateway call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// StateError reports a transition attempted from an incompatible state.
type StateError struct {
	BookingID     string
	Op            string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	Reason        string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("state: cannot %s booking %s (status=%s, payment=%s)", e.Op, e.BookingID, e.Status, e.PaymentStatus)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func NewStateError(op string, b *Booking) *StateError {
	return &StateError{BookingID: b.ID, Op: op, Status: b.Status, PaymentStatus: b.PaymentStatus}
}

// GatewayError is any failure reported by or while talking to the payment
// processor: declines, timeouts and network errors alike. The booking stays
// retryable.
type GatewayError struct {
	Op       string
	Code     string
	Message  string
	Declined bool
	Err      error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Op, msg)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown booking or intent id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
