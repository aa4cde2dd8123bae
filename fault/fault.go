package fault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInternal is an unexpected failure. Detail is logged, never returned.
	KindInternal Kind = iota
	// KindValidation is a malformed or missing input.
	KindValidation
	// KindConfiguration is a missing API key or collaborator endpoint.
	KindConfiguration
	// KindBadUpload is an unreadable or unsupported uploaded file.
	KindBadUpload
	// KindTimeout is an upstream call that exceeded its deadline.
	KindTimeout
	// KindUpstream is a non-timeout failure reported by a collaborator.
	KindUpstream
	// KindForbidden is a failed shared-secret check.
	KindForbidden
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindBadUpload:
		return "bad_upload"
	case KindTimeout:
		return "timeout"
	case KindUpstream:
		return "upstream"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// HTTPStatus returns the status code used for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConfiguration:
		return http.StatusServiceUnavailable
	case KindBadUpload:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUpstream:
		return http.StatusBadGateway
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether the message of an error of this kind may be returned
// to the caller.
func (k Kind) Public() bool {
	return k != KindInternal
}

// Error is a tagged failure.
type Error struct {
	Kind Kind

	// Op names the operation that failed, e.g. "weather.current".
	Op string

	// Message is the caller-facing description.
	Message string

	// Err is the underlying cause, if any. It is logged, never returned.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var prefix string
	if e.Op != "" {
		prefix = e.Op + ": "
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %s: %v", prefix, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s%s: %s", prefix, e.Kind, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so sentinel-style comparisons such as
// errors.Is(err, &Error{Kind: KindTimeout}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New creates a tagged error without a cause.
func New(kind Kind, op, message string) error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates a tagged error around cause. A nil cause yields a nil error.
func Wrap(kind Kind, op, message string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// Validation creates a validation error.
func Validation(op, message string) error {
	return New(KindValidation, op, message)
}

// Configuration creates a configuration error.
func Configuration(op, message string) error {
	return New(KindConfiguration, op, message)
}

// BadUpload creates an unreadable-upload error.
func BadUpload(op, message string, cause error) error {
	return &Error{Kind: KindBadUpload, Op: op, Message: message, Err: cause}
}

// Timeout creates an upstream timeout error.
func Timeout(op, message string, cause error) error {
	return &Error{Kind: KindTimeout, Op: op, Message: message, Err: cause}
}

// Upstream creates an upstream failure error.
func Upstream(op, message string, cause error) error {
	return &Error{Kind: KindUpstream, Op: op, Message: message, Err: cause}
}

// Internal creates an internal error.
func Internal(op string, cause error) error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal server error", Err: cause}
}

// Forbidden creates an authorization error.
func Forbidden(op, message string) error {
	return New(KindForbidden, op, message)
}

// KindOf returns the kind of err. Untagged errors are internal, except bare
// context deadline errors, which are timeouts.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err. Internal and untagged
// errors collapse to fallback.
func MessageOf(err error, fallback string) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind.Public() && fe.Message != "" {
		return fe.Message
	}
	return fallback
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
