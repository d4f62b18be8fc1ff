// Package apperr is the error taxonomy shared by every component. Each error
// carries a Kind that decides the HTTP status it is rendered with.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindNotFound
	KindGateway
	KindSignature
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindGateway:
		return "gateway"
	case KindSignature:
		return "signature"
	default:
		return "internal"
	}
}

// ErrDuplicate is returned by the store when a unique index rejects a write.
var ErrDuplicate = errors.New("duplicate key")

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

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }
func Conflict(format string, args ...any) *Error   { return newf(KindConflict, format, args...) }
func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, format, args...)
}
func NotFound(format string, args ...any) *Error  { return newf(KindNotFound, format, args...) }
func Signature(format string, args ...any) *Error { return newf(KindSignature, format, args...) }

// Gateway wraps a payment provider failure.
func Gateway(err error, format string, args ...any) *Error {
	e := newf(KindGateway, format, args...)
	e.Err = err
	return e
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Status maps an error to the HTTP status it is surfaced with.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict, KindSignature:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message is the client-facing text for err. Internal errors are not echoed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindGateway {
			return e.Message
		}
		return e.Error()
	}
	return "internal server error"
}
