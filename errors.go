package vovk

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Annotation misuse. These are returned (wrapped with the offending
// controller and method) when decorators are applied or controllers are
// activated, never at call time.
var (
	// ErrNotAFunction is returned when a decorator targets a method that was
	// never registered with Controller.Handle.
	ErrNotAFunction = errors.New("vovk: decorated member is not a function")

	// ErrNotAController is returned when a route decorator is applied to a
	// controller that was not created with NewController.
	ErrNotAController = errors.New("vovk: decorator must be used on a static controller method")

	// ErrMissingControllerName is returned by Auto and by metadata emission
	// when the controller has no public controllerName.
	ErrMissingControllerName = errors.New("vovk: controller has no controllerName")

	// ErrControllerNameMismatch is returned in development mode when a
	// controller's controllerName differs from its name.
	ErrControllerNameMismatch = errors.New("vovk: controllerName does not match the controller name")

	// ErrRouteConflict is returned when two handlers claim the same verb and
	// full path.
	ErrRouteConflict = errors.New("vovk: route conflict")

	// ErrRouteAlreadySet is returned when a second route decorator is applied
	// to a method that already has a path and httpMethod.
	ErrRouteAlreadySet = errors.New("vovk: route already set")

	// ErrActivated is returned when a controller or segment is mutated after
	// activation.
	ErrActivated = errors.New("vovk: already activated")

	// ErrInvalidPath is returned by route decorators whose path still starts
	// or ends with "/" after one slash is trimmed from each end.
	ErrInvalidPath = errors.New("vovk: invalid route path")
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "invalid_argument"
	CodeUnauthenticated   ErrorCode = "unauthenticated"
	CodePermissionDenied  ErrorCode = "permission_denied"
	CodeNotFound          ErrorCode = "not_found"
	CodeMethodNotAllowed  ErrorCode = "method_not_allowed"
	CodeConflict          ErrorCode = "conflict"
	CodeAlreadyExists     ErrorCode = "already_exists" // Alias for conflict, used when resource already exists
	CodeGone              ErrorCode = "gone"
	CodeResourceExhausted ErrorCode = "resource_exhausted"
	CodeCanceled          ErrorCode = "canceled"
	CodeInternal          ErrorCode = "internal"
	CodeNotImplemented    ErrorCode = "not_implemented"
	CodeUnavailable       ErrorCode = "unavailable"
	CodeDeadlineExceeded  ErrorCode = "deadline_exceeded"
)

// Error is the standard JSON error envelope returned by handlers.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new handler error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new handler error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := maps.Clone(e.Details)
	if details == nil {
		details = make(map[string]any, 1)
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// WithDetails returns a new Error with the provided map merged into details.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	maps.Copy(merged, details)
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
	}
}

// fromValidation turns validator field errors into one invalid_argument
// error keyed by struct field name.
func fromValidation(fieldErrs validator.ValidationErrors) *Error {
	details := make(map[string]any, len(fieldErrs))
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg := validationMessage(fe)
		details[fe.Field()] = msg
		parts = append(parts, fe.Field()+": "+msg)
	}
	return &Error{Code: CodeInvalidArgument, Message: strings.Join(parts, "; "), Details: details}
}

// ErrorTransformer maps an application error to a handler error.
// If it returns nil, DefaultErrorTransformer is applied.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer maps standard Go errors to handler errors.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeDeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return NewError(CodeCanceled, "context canceled")
	case errors.Is(err, ErrStreamStopped):
		return NewError(CodeCanceled, "stream stopped")
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return fromValidation(fieldErrs)
	}

	// errors.Join: the first error picks the code, every message is kept.
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := joined.Unwrap(); len(errs) > 0 {
			head := DefaultErrorTransformer(errs[0])
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			return &Error{Code: head.Code, Message: strings.Join(msgs, "; "), Details: head.Details}
		}
	}

	return NewError(CodeInternal, err.Error())
}

// statusByCode holds the HTTP status of every known code. 499 is the
// nginx "client closed request" status.
var statusByCode = map[ErrorCode]int{
	CodeInvalidArgument:   http.StatusBadRequest,
	CodeUnauthenticated:   http.StatusUnauthorized,
	CodePermissionDenied:  http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeMethodNotAllowed:  http.StatusMethodNotAllowed,
	CodeConflict:          http.StatusConflict,
	CodeAlreadyExists:     http.StatusConflict,
	CodeGone:              http.StatusGone,
	CodeResourceExhausted: http.StatusTooManyRequests,
	CodeCanceled:          499,
	CodeInternal:          http.StatusInternalServerError,
	CodeNotImplemented:    http.StatusNotImplemented,
	CodeUnavailable:       http.StatusServiceUnavailable,
	CodeDeadlineExceeded:  http.StatusGatewayTimeout,
}

// HTTPStatus returns the response status for c. Unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// validationMessages maps validator tags to messages. %s is the tag param.
var validationMessages = map[string]string{
	"required": "required",
	"min":      "must be at least %s characters",
	"max":      "must be at most %s characters",
	"len":      "must be exactly %s characters",
	"eq":       "must equal %s",
	"ne":       "must not equal %s",
	"gt":       "must be greater than %s",
	"gte":      "must be at least %s",
	"lt":       "must be less than %s",
	"lte":      "must be at most %s",
	"email":    "must be a valid email address",
	"url":      "must be a valid URL",
	"uuid":     "must be a valid UUID",
	"oneof":    "must be one of: %s",
}

func validationMessage(fe validator.FieldError) string {
	if format, ok := validationMessages[fe.Tag()]; ok {
		if strings.Contains(format, "%s") {
			return fmt.Sprintf(format, fe.Param())
		}
		return format
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed %s=%s validation", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
