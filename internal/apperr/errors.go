package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a processing failure.
type Kind int

const (
	// KindUnexpected is the catch-all for failures nobody tagged, including
	// recovered panics from codec libraries.
	KindUnexpected Kind = iota
	KindRequest
	KindFormat
	KindParameter
	KindCodec
	KindIO
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindFormat:
		return "format"
	case KindParameter:
		return "parameter"
	case KindCodec:
		return "codec"
	case KindIO:
		return "io"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unexpected"
	}
}

// HTTPStatus maps a kind to the response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindRequest, KindFormat, KindParameter:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a tagged failure carrying a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Request(format string, args ...any) *Error {
	return newError(KindRequest, nil, format, args...)
}

func Format(format string, args ...any) *Error {
	return newError(KindFormat, nil, format, args...)
}

func Parameter(format string, args ...any) *Error {
	return newError(KindParameter, nil, format, args...)
}

func Codec(err error, format string, args ...any) *Error {
	return newError(KindCodec, err, format, args...)
}

func IO(err error, format string, args ...any) *Error {
	return newError(KindIO, err, format, args...)
}

func RateLimited(format string, args ...any) *Error {
	return newError(KindRateLimited, nil, format, args...)
}

// Unexpected wraps a failure that escaped every other classification.
func Unexpected(err error) *Error {
	return newError(KindUnexpected, err, "an error occurred during processing")
}

// KindOf returns the kind of err. Untagged errors count as codec failures:
// every decoder failure mode cannot be enumerated up front.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCodec
}

// IsValidation reports whether err was rejected before any transform work.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindRequest, KindFormat, KindParameter:
		return true
	}
	return false
}
