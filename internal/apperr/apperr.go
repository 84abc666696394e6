// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindGone         Kind = "gone"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

// Reason is a stable sub-classification clients can branch on.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonAlreadyAccepted  Reason = "already_accepted"
	ReasonExpired          Reason = "expired"
	ReasonRevoked          Reason = "revoked"
	ReasonQuotaExceeded    Reason = "quota_exceeded"
	ReasonSelfInvite       Reason = "self_invite"
	ReasonDuplicateInvite  Reason = "duplicate_invite"
	ReasonAlreadyHasAccess Reason = "already_has_access"
	ReasonEmailMismatch    Reason = "email_mismatch"
	ReasonOwnerAccess      Reason = "owner_access"
	ReasonProjectInactive  Reason = "project_inactive"
	ReasonToolInactive     Reason = "tool_inactive"
	ReasonVersionConflict  Reason = "version_conflict"
)

type Error struct {
	Kind      Kind
	Reason    Reason
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on kind and reason so sentinels compare by classification.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason && e.Message == t.Message
}

func New(kind Kind, reason Reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, ReasonNone, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, ReasonNone, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, ReasonNone, message)
}

func Gone(reason Reason, message string) *Error {
	return New(KindGone, reason, message)
}

func Conflict(reason Reason, message string) *Error {
	return New(KindConflict, reason, message)
}

func Validation(message string) *Error {
	return New(KindValidation, ReasonNone, message)
}

func Unavailable(message string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Retryable: true, cause: cause}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, cause: cause}
}

// As extracts the *Error from err, classifying anything else via FromStore.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return FromStore(err)
}

// KindOf reports the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return ""
}

// FromStore maps transient database failures to a retryable Unavailable error.
func FromStore(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if isTransient(err) {
		return Unavailable("storage temporarily unavailable", err)
	}
	return Internal("internal error", err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "57P03", "53300":
			return true
		}
		return false
	}

	var connectErr *pgconn.ConnectError
	return errors.As(err, &connectErr)
}
