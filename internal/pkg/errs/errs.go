package errs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"roomhub/internal/pkg/logx"
)

// Kind classifies an error independently of its code.
type Kind string

const (
	KindNotFound     Kind = "NotFound"
	KindForbidden    Kind = "Forbidden"
	KindConflict     Kind = "Conflict"
	KindTimeout      Kind = "Timeout"
	KindInvalid      Kind = "Invalid"
	KindUnauthorized Kind = "Unauthorized"
	KindRateLimited  Kind = "RateLimited"
	KindInternal     Kind = "Internal"
)

// CustomError is the error type returned across the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Kind is the error class used for status mapping and caller decisions.
	Kind Kind

	// Message is the user-facing description.
	Message string

	// Status is the HTTP status code for this error.
	Status int

	cause error
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("error code %d (%s): %s", e.Code, e.Kind, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *CustomError) Unwrap() error {
	return e.cause
}

// WithCause records the underlying error without changing the user-facing message.
func (e *CustomError) WithCause(err error) *CustomError {
	e.cause = err
	return e
}

// NewError builds a *CustomError from a catalogue code. Details are printf arguments for
// the message template; for ErrUnknown the first detail may be the underlying error, which
// is logged and kept as the cause. Unknown codes degrade to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	template, ok := errorMap[code]
	if !ok {
		logx.Error(
			fmt.Errorf("unknown error code %d", code),
			"Unknown error code requested",
			"requested_code", code,
		)
		template = errorMap[ErrUnknown]
	}

	customErr := template
	if customErr.Status == 0 {
		customErr.Status = kindStatus[customErr.Kind]
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "Handling ErrUnknown with underlying error")
			customErr.cause = originalErr
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn("Details provided for error, but message template has no placeholders. Details ignored.",
				"code", code)
		}
	}

	return &customErr
}

// As extracts a *CustomError from err.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// KindOf reports the Kind of err. Context deadline and cancellation errors are Timeout;
// anything else that is not a *CustomError is Internal. KindOf(nil) is the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if customErr, ok := As(err); ok {
		return customErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// Is reports whether err is of the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Wrap converts any error to a *CustomError. Existing CustomErrors pass through, context
// expiry becomes ErrTimeout, and everything else becomes ErrUnknown with err as cause.
func Wrap(err error) *CustomError {
	if err == nil {
		return nil
	}
	if customErr, ok := As(err); ok {
		return customErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(ErrTimeout).WithCause(err)
	}
	return NewError(ErrUnknown, err)
}
