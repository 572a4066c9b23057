// Package errs defines the domain error hierarchy shared by the store,
// reconciler, and API layers (spec §7). A small set of Kinds maps directly
// onto HTTP status codes; concrete errors are constructed with New and
// carry a Kind plus a formatted message, mirroring doni's
// common.exception module of typed, _msg_fmt-driven exceptions.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error for HTTP translation and logging.
type Kind string

const (
	KindInvalid          Kind = "invalid"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindForbidden        Kind = "forbidden"
	KindTemporaryFailure Kind = "temporary_failure"
	KindDriverLoadError  Kind = "driver_load_error"
	KindUnhandled        Kind = "unhandled"
)

// HTTPStatus maps a Kind to the status code the API layer should return.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindTemporaryFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error: a Kind plus a human-readable, already-formatted
// message. It wraps an optional underlying cause for %w-chaining.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, errs.KindNotFound) style matching against a bare
// Kind value wrapped as an error via New(kind, "").
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error of the given Kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given Kind that carries cause as its
// unwrap target, preserving errors.Is/As chains through the domain
// boundary.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, defaulting
// to KindUnhandled otherwise. API handlers use this to pick an HTTP status
// for errors returned from the store or reconciler.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindUnhandled
}

// Named constructors mirroring doni's common.exception concrete classes.
// Each captures the identifying value(s) in the message the way the
// source's _msg_fmt templates do.

func HardwareNotFound(uuidOrName string) *Error {
	return New(KindNotFound, "Hardware %s could not be found", uuidOrName)
}

func HardwareAlreadyExists(uuid string) *Error {
	return New(KindConflict, "Hardware with UUID %s already exists", uuid)
}

func HardwareDuplicateName(name string) *Error {
	return New(KindConflict, "Hardware with name %s already exists", name)
}

func AvailabilityWindowNotFound(uuid string) *Error {
	return New(KindNotFound, "Availability window %s could not be found", uuid)
}

func DriverNotFound(name string) *Error {
	return New(KindNotFound, "Could not find the following driver(s) or hardware type(s): %s", name)
}

func DriverLoadError(driver string, reason error) *Error {
	return Wrap(KindDriverLoadError, reason, "Driver or hardware type %s could not be loaded", driver)
}

func DriversNotLoaded(host string) *Error {
	return New(KindDriverLoadError, "Worker %s cannot be started because no hardware types were loaded", host)
}

func WorkerTaskNotFound(uuid string) *Error {
	return New(KindNotFound, "WorkerTask %s could not be found", uuid)
}

func WorkerTaskAlreadyExists(uuid string) *Error {
	return New(KindConflict, "WorkerTask with UUID %s already exists", uuid)
}

func NoFreeWorker() *Error {
	return New(KindTemporaryFailure, "Requested action cannot be performed due to lack of free workers")
}

func InvalidParameterValue(msg string, args ...any) *Error {
	return New(KindInvalid, msg, args...)
}

func MissingParameterValue(msg string, args ...any) *Error {
	return New(KindInvalid, msg, args...)
}

func PatchError(patch string, reason string) *Error {
	return New(KindInvalid, "Couldn't apply patch %q. Reason: %s", patch, reason)
}

func PolicyNotAuthorized(action string) *Error {
	return New(KindForbidden, "Policy doesn't allow %s to be performed", action)
}
