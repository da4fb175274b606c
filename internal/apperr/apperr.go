// Package apperr defines the closed set of error kinds surfaced by the chat backend.
//
// Every storage, network and validation boundary maps its native failures into exactly one
// Kind. Callers branch on the kind with Is or KindOf, never on error text.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	// KindInternal is never constructed directly; KindOf reports it for errors
	// that did not pass through a boundary mapping.
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
	KindInvalidCursor
	KindCompletionFailure
	KindStorageUnavailable
	KindDuplicateID
	KindRateLimited
)

var kindCodes = map[Kind]string{
	KindInternal:           "INTERNAL",
	KindUnauthenticated:    "UNAUTHENTICATED",
	KindForbidden:          "FORBIDDEN",
	KindNotFound:           "NOT_FOUND",
	KindValidation:         "VALIDATION_ERROR",
	KindInvalidCursor:      "INVALID_CURSOR",
	KindCompletionFailure:  "COMPLETION_FAILURE",
	KindStorageUnavailable: "STORAGE_UNAVAILABLE",
	KindDuplicateID:        "DUPLICATE_ID",
	KindRateLimited:        "RATE_LIMITED",
}

// Code is the stable machine-readable name of the kind.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return kindCodes[KindInternal]
}

func (k Kind) String() string { return k.Code() }

// Error is the concrete error value returned across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind.Code(), e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an error of the given kind carrying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func Validation(msg string) *Error { return New(KindValidation, msg) }

func InvalidCursor(cause error) *Error {
	return Wrap(KindInvalidCursor, "invalid cursor", cause)
}

func CompletionFailure(reason string, cause error) *Error {
	return Wrap(KindCompletionFailure, reason, cause)
}

func RateLimited(msg string) *Error { return New(KindRateLimited, msg) }

func DuplicateID(cause error) *Error {
	return Wrap(KindDuplicateID, "duplicate id", cause)
}

// Storage maps a store failure to StorageUnavailable. Errors that already
// carry a kind pass through unchanged.
func Storage(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return Wrap(KindStorageUnavailable, op+": storage timeout", cause)
	}
	return Wrap(KindStorageUnavailable, op, cause)
}
