package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrEditConflict         = errors.New("edit conflict")
	ErrDuplicateBookingCode = errors.New("booking code already exists")
	ErrStoreClosed          = errors.New("lock store is closed")
)

// ErrorKind is the stable, client-visible category of a domain error.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindConflict      ErrorKind = "conflict"
	KindNotFound      ErrorKind = "not_found"
	KindAuthorization ErrorKind = "authorization"
	KindInactive      ErrorKind = "inactive"
	KindPersistence   ErrorKind = "persistence"
	KindInconsistency ErrorKind = "inconsistency"
)

// Error is the typed error returned by the booking core. Message is safe to show to
// clients; Err holds internal detail and is only logged.
type Error struct {
	Kind      ErrorKind
	Message   string
	Seats     []string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError reports the exact subset of seats that are held or sold.
func NewConflictError(seats []string) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("seats are not available: %s", strings.Join(seats, ", ")),
		Seats:   seats,
	}
}

func NewBusyError(err error) *Error {
	return &Error{
		Kind:      KindConflict,
		Message:   "showtime is busy, please retry",
		Retryable: true,
		Err:       err,
	}
}

// NewTransitionError rejects a status change that would move backwards or out of a
// terminal state.
func NewTransitionError(resource string, from, to any) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("%s cannot move from %v to %v", resource, from, to),
	}
}

func NewEditConflictError(resource string) *Error {
	return &Error{
		Kind:      KindConflict,
		Message:   fmt.Sprintf("%s was modified concurrently, please retry", resource),
		Retryable: true,
		Err:       ErrEditConflict,
	}
}

func NewNotFoundError(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func NewAuthorizationError(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func NewInactiveError(resource string) *Error {
	return &Error{Kind: KindInactive, Message: fmt.Sprintf("%s is no longer active", resource)}
}

func NewPersistenceError(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: fmt.Sprintf("failed to %s", op), Err: err}
}

// NewInconsistencyError marks a state that needs manual reconciliation, e.g. seats
// sold without a booking because the compensating rollback failed.
func NewInconsistencyError(message string, err error) *Error {
	return &Error{Kind: KindInconsistency, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
