package domain

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error so the transport layer can map it to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindLocked
	KindForbidden
	KindNotFound
	KindConflict
	KindState
	KindUpstream
)

var kindCodes = map[Kind]string{
	KindInternal:   "INTERNAL_ERROR",
	KindValidation: "VALIDATION_ERROR",
	KindAuth:       "AUTH_ERROR",
	KindLocked:     "ACCOUNT_LOCKED",
	KindForbidden:  "FORBIDDEN",
	KindNotFound:   "NOT_FOUND",
	KindConflict:   "CONFLICT",
	KindState:      "STATE_ERROR",
	KindUpstream:   "UPSTREAM_ERROR",
}

// Code is the stable machine-readable name of the kind.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindInternal]
}

// KindFromCode is the inverse of Code. Unknown codes map to KindInternal.
func KindFromCode(code string) Kind {
	for k, c := range kindCodes {
		if c == code {
			return k
		}
	}
	return KindInternal
}

// Error is the single error type crossing the service boundary.
type Error struct {
	Kind    Kind
	Message string
	// RetryAfter is set for KindLocked.
	RetryAfter time.Duration
	// Status is the downstream HTTP status for KindUpstream.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// RetryAfterSeconds rounds the remaining lock time up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 && e.Kind == KindLocked {
		return 1
	}
	return secs
}

var (
	ErrValidation = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrAuth       = &Error{Kind: KindAuth, Message: "invalid credentials"}
	ErrLocked     = &Error{Kind: KindLocked, Message: "account locked"}
	ErrForbidden  = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "conflict"}
	ErrState      = &Error{Kind: KindState, Message: "invalid state transition"}
	ErrInternal   = &Error{Kind: KindInternal, Message: "internal error"}
	ErrUpstream   = &Error{Kind: KindUpstream, Message: "upstream error"}
)

// Validation reports a client-fixable input problem.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// InvalidCredentials is returned for both unknown accounts and wrong passwords.
func InvalidCredentials() error {
	return &Error{Kind: KindAuth, Message: "invalid credentials"}
}

// Unauthenticated reports a missing, expired or revoked session token.
func Unauthenticated(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

func Locked(remaining time.Duration) error {
	e := &Error{Kind: KindLocked, RetryAfter: remaining}
	e.Message = fmt.Sprintf("account locked, try again in %d seconds", e.RetryAfterSeconds())
	return e
}

func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

func State(format string, args ...any) error {
	return &Error{Kind: KindState, Message: fmt.Sprintf(format, args...)}
}

// Internal hides err behind a stable message.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Upstream reports a failed call to another service; status is 0 when no response arrived.
func Upstream(status int, msg string, err error) error {
	return &Error{Kind: KindUpstream, Message: msg, Status: status, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError extracts the *Error from err, wrapping foreign errors as internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
