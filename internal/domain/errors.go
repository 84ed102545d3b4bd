package domain

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindDependency
	KindUnavailable
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDependency:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a user-visible failure. Message is safe to return to the caller;
// Err holds the diagnostic cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two *Error values by kind and message so wrapped sentinels compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Validation(msg string) *Error   { return newError(KindValidation, msg) }
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return newError(KindForbidden, msg) }
func NotFound(msg string) *Error     { return newError(KindNotFound, msg) }
func Conflict(msg string) *Error     { return newError(KindConflict, msg) }

// Dependency wraps a failure of an external provider.
func Dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: err}
}

// Wrap attaches a cause to a sentinel without changing its identity.
func Wrap(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: err}
}

// Slot state conflicts answer 409, malformed input 400. A second review
// inside the window answers 429.
var (
	ErrSlotUnavailable    = Conflict("Slot unavailable.")
	ErrSlotOverlap        = Conflict("Slot overlaps an existing availability block.")
	ErrSlotBooked         = Conflict("Cannot delete a slot that is already booked.")
	ErrSlotHeld           = Conflict("Cannot reopen a slot with an active booking.")
	ErrSlotNotFound       = NotFound("Slot not found")
	ErrBookingNotFound    = NotFound("Booking not found")
	ErrBookingNotActive   = Conflict("Booking is not active.")
	ErrUserNotFound       = NotFound("User not found")
	ErrEmailTaken         = Validation("Email already in use.")
	ErrReviewTooSoon      = newError(KindRateLimited, "You can only submit one review per day.")
	ErrInvalidCredentials = Unauthorized("Invalid credentials.")
	ErrOwnerRequired      = Forbidden("Owner access required")
)

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
