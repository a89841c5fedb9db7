package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classes an admin operation can report.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthenticated
	KindPermissionDenied
	KindInvalidArgument
	KindAlreadyExists
	KindNotFound
)

// Code returns the stable wire code for the kind.
func (k ErrorKind) Code() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindPermissionDenied:
		return "permission-denied"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindAlreadyExists:
		return "already-exists"
	case KindNotFound:
		return "not-found"
	default:
		return "internal"
	}
}

func (k ErrorKind) String() string {
	return k.Code()
}

// Error is the failure returned by every lifecycle operation.
// Message is safe to show to the caller; Cause is for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error without an underlying cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error that keeps cause for logging.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Identity provider errors.
var (
	ErrCredentialInvalid           = errors.New("credential is invalid or expired")
	ErrAccountNotFound             = errors.New("account not found in identity provider")
	ErrEmailTaken                  = errors.New("email already registered")
	ErrPasswordRejected            = errors.New("password rejected by policy")
	ErrIdentityRejected            = errors.New("identity data rejected")
	ErrIdentityProviderUnavailable = errors.New("identity provider unavailable")
)

// Profile store errors.
var (
	ErrProfileNotFound = errors.New("profile not found")
)
