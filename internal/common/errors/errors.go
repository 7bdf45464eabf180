package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("unavailable")
	ErrInternal     = errors.New("internal error")
	ErrTransport    = errors.New("transport error")
	ErrMalformed    = errors.New("malformed payload")
)

type AppError struct {
	Code    codes.Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code codes.Code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NotFound(message string) *AppError {
	return &AppError{Code: codes.NotFound, Message: message, Err: ErrNotFound}
}

func Unauthorized(message string) *AppError {
	return &AppError{Code: codes.Unauthenticated, Message: message, Err: ErrUnauthorized}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: codes.PermissionDenied, Message: message, Err: ErrForbidden}
}

func BadRequest(message string) *AppError {
	return &AppError{Code: codes.InvalidArgument, Message: message, Err: ErrBadRequest}
}

func Conflict(message string) *AppError {
	return &AppError{Code: codes.AlreadyExists, Message: message, Err: ErrConflict}
}

func Unavailable(message string, err error) *AppError {
	if err == nil {
		err = ErrUnavailable
	}
	return &AppError{Code: codes.Unavailable, Message: message, Err: err}
}

func Transport(message string, err error) *AppError {
	if err == nil {
		err = ErrTransport
	} else {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return &AppError{Code: codes.Unavailable, Message: message, Err: err}
}

func Malformed(message string) *AppError {
	return &AppError{Code: codes.InvalidArgument, Message: message, Err: ErrMalformed}
}

func Internal(message string, err error) *AppError {
	return &AppError{Code: codes.Internal, Message: message, Err: err}
}

func FromHTTPStatus(status int, message string) *AppError {
	switch {
	case status == http.StatusNotFound:
		return NotFound(message)
	case status == http.StatusUnauthorized:
		return Unauthorized(message)
	case status == http.StatusForbidden:
		return Forbidden(message)
	case status == http.StatusConflict:
		return Conflict(message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return BadRequest(message)
	case status == http.StatusTooManyRequests:
		return &AppError{Code: codes.ResourceExhausted, Message: message, Err: ErrUnavailable}
	case status >= 500:
		return Unavailable(message, nil)
	default:
		return Internal(message, fmt.Errorf("unexpected status %d", status))
	}
}

func CodeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return codes.Unknown
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == codes.NotFound {
		return true
	}
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code == codes.AlreadyExists {
		return true
	}
	return errors.Is(err, ErrConflict)
}

// IsRetryable reports whether repeating the same request may succeed.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Unknown:
		return true
	default:
		return false
	}
}
