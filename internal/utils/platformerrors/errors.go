package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Layer string

const (
	LayerRoute          Layer = "route"
	LayerHandler        Layer = "handler"
	LayerDomain         Layer = "domain"
	LayerRepository     Layer = "repository"
	LayerInfrastructure Layer = "infrastructure"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeExternal      ErrorType = "external"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeUnavailable   ErrorType = "unavailable"
	ErrorTypeDatabaseError ErrorType = "database_error"
	ErrorTypeInternal      ErrorType = "internal"
)

// PlatformError carries the layer and category alongside the wrapped cause so
// handlers can map failures to HTTP statuses without string matching.
type PlatformError struct {
	Layer   Layer
	Type    ErrorType
	Message string
	Cause   error
}

func (e *PlatformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// NewError constructs a typed error at the given layer.
func NewError(_ context.Context, layer Layer, errType ErrorType, message string, cause error) error {
	return &PlatformError{
		Layer:   layer,
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// AsError wraps err with message, preserving the original type when err is
// already a PlatformError.
func AsError(ctx context.Context, layer Layer, err error, message string) error {
	if err == nil {
		return nil
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		return &PlatformError{
			Layer:   layer,
			Type:    pe.Type,
			Message: message,
			Cause:   err,
		}
	}
	return NewError(ctx, layer, ErrorTypeInternal, message, err)
}

// TypeOf returns the category of err, or ErrorTypeInternal for untyped errors.
func TypeOf(err error) ErrorType {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeInternal
}

// IsNotFound reports whether err is a not_found platform error.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// ErrorTypeToHTTPStatus maps an error category to the HTTP status the route
// layer should answer with.
func ErrorTypeToHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeUnavailable, ErrorTypeExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
