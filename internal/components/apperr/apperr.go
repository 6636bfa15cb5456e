// Package apperr defines the typed error taxonomy shared by guards, the
// participation workflow, and the HTTP error writer.
//
// Every failure surfaced to a caller is an *Error carrying a Kind (which maps
// to an HTTP status class) and a stable machine-readable Code.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for status mapping and retry policy.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAuthorization
	KindRateLimit
	KindConflict
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindRateLimit:
		return "rate_limit"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Stable error codes. Clients match on these; do not rename.
const (
	// Authentication
	CodeUnauthenticated    = "unauthenticated"
	CodeMalformed          = "malformed"
	CodeExpired            = "expired"
	CodeSubjectNotFound    = "subject_not_found"
	CodeAccountInactive    = "account_inactive"
	CodeAccountBanned      = "account_banned"
	CodeInvalidCredentials = "invalid_credentials"

	// Authorization
	CodeNotOwner         = "not_owner"
	CodeInsufficientRole = "insufficient_role"
	CodeBlockedByHost    = "blocked_by_host"

	// Rate limiting
	CodeRateLimited = "rate_limited"

	// Conflicts
	CodeCapacityFull       = "capacity_full"
	CodeAlreadyParticipant = "already_participant"
	CodeNotParticipant     = "not_participant"
	CodeHostCannotLeave    = "host_cannot_leave"
	CodeDuplicatePending   = "duplicate_pending"
	CodeSelfRequest        = "self_request"
	CodeAlreadyResolved    = "already_resolved"
	CodeUsernameTaken      = "username_taken"
	CodeEmailTaken         = "email_taken"

	// Lookup
	CodeNotFound = "not_found"

	// Validation
	CodeInvalidRequest  = "invalid_request"
	CodeInvalidCapacity = "invalid_capacity"
	CodeInvalidTarget   = "invalid_target"

	CodeInternal = "internal_error"
)

// Error is the single error type surfaced by the core.
type Error struct {
	Kind    Kind
	Code    string
	Message string

	// RetryAfter is set for KindRateLimit.
	RetryAfter time.Duration

	// Role is the evaluated principal role on authorization failures.
	Role string

	// RequiredRoles is the allow-set that rejected Role (role gate only).
	RequiredRoles []string

	// Err is the underlying cause. Never serialized.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and Code, so sentinel values below can be
// used with errors.Is regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

// Sentinels for the conflict codes. Returned as-is; never mutate.
var (
	ErrCapacityFull       = Conflict(CodeCapacityFull, "post is at capacity")
	ErrAlreadyParticipant = Conflict(CodeAlreadyParticipant, "already a participant")
	ErrNotParticipant     = Conflict(CodeNotParticipant, "not a participant")
	ErrHostCannotLeave    = Conflict(CodeHostCannotLeave, "the host cannot leave their own post")
	ErrDuplicatePending   = Conflict(CodeDuplicatePending, "a pending join request already exists")
	ErrSelfRequest        = Conflict(CodeSelfRequest, "hosts cannot request to join their own post")
	ErrAlreadyResolved    = Conflict(CodeAlreadyResolved, "join request has already been resolved")
)

// Authentication returns a 401-class error.
func Authentication(code, message string) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: message}
}

// Forbidden returns a 403-class error recording the evaluated role.
func Forbidden(code, message, role string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message, Role: role}
}

// RoleRequired returns a 403-class role gate failure.
func RoleRequired(role string, required []string) *Error {
	rr := make([]string, len(required))
	copy(rr, required)
	return &Error{
		Kind:          KindAuthorization,
		Code:          CodeInsufficientRole,
		Message:       "insufficient role",
		Role:          role,
		RequiredRoles: rr,
	}
}

// RateLimited returns a 429-class error with a retry hint.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Code:       CodeRateLimited,
		Message:    "too many requests",
		RetryAfter: retryAfter,
	}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// NotFound returns a 404-class error. what names the missing thing.
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Internal wraps a collaborator failure. The message is generic; the cause
// is kept for logging only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the Kind of err. Untyped errors are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the Code of err, or CodeInternal for untyped errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// Normalize returns err as an *Error, wrapping untyped errors as internal.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Internal(err)
}
