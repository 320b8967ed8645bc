package domain

import (
	"errors"
	"net/http"
)

// Kind classifies failures at the request boundary.
type Kind int

const (
	KindUnhandled Kind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindUnauthenticated
	KindConflict
)

// StatusCode maps a kind to its HTTP status.
func (k Kind) StatusCode() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation failure"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindConflict:
		return "conflict"
	default:
		return "unhandled failure"
	}
}

var (
	// ErrCourseNotFound is returned when a course id does not resolve.
	ErrCourseNotFound = &Error{Kind: KindNotFound, Message: "course not found"}
	// ErrQuizNotFound is returned when a course has no quiz or the quiz record is gone.
	ErrQuizNotFound = &Error{Kind: KindNotFound, Message: "quiz not found"}
	// ErrUserNotFound is returned when a user id or username does not resolve.
	ErrUserNotFound = &Error{Kind: KindNotFound, Message: "user not found"}
	// ErrEnrollmentNotFound is returned when the student is not enrolled in the course.
	ErrEnrollmentNotFound = &Error{Kind: KindNotFound, Message: "enrollment not found"}
	// ErrAlreadyAttempted is returned on a second attempt at the same quiz.
	ErrAlreadyAttempted = &Error{Kind: KindConflict, Message: "quiz already attempted"}
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = &Error{Kind: KindConflict, Message: "a user with the given username is already registered"}
	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Message: "password or username is incorrect"}
)

// Error is the single flagged error that surfaces at the request boundary.
type Error struct {
	Kind     Kind
	Op       string
	Message  string
	Redirect string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind and message so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// E builds an Error of the given kind.
func E(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Validation builds a ValidationFailure error.
func Validation(op, message string) *Error {
	return E(KindValidation, op, message)
}

// Forbidden builds a Forbidden error with a redirect hint.
func Forbidden(message, redirect string) *Error {
	return &Error{Kind: KindForbidden, Message: message, Redirect: redirect}
}

// Wrap attaches an operation name to err, keeping its classification.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return &Error{Kind: de.Kind, Op: op, Message: de.Message, Redirect: de.Redirect, Err: de.Err}
	}
	return &Error{Kind: KindUnhandled, Op: op, Err: err}
}

// KindOf classifies any error; unknown errors are unhandled.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnhandled
}

// PublicMessage returns the human readable part of err that is safe to show.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindUnhandled {
		if de.Message != "" {
			return de.Message
		}
		return de.Kind.String()
	}
	return ""
}

// RedirectOf returns the redirect hint carried by err, if any.
func RedirectOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Redirect
	}
	return ""
}
