package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Upstream call errors
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"
	ErrCodeAuth      ErrorCode = "AUTH_ERROR"

	// Record-level errors
	ErrCodeData ErrorCode = "DATA_ERROR"

	// Startup errors
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// System errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// FolioError represents a standardized error
type FolioError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *FolioError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped error to errors.Is/As
func (e *FolioError) Unwrap() error {
	return e.Err
}

// New creates a new FolioError
func New(code ErrorCode, message string) *FolioError {
	return &FolioError{
		Code:       code,
		Message:    message,
		StatusCode: getHTTPStatusCode(code),
	}
}

// Wrap wraps an existing error with FolioError
func Wrap(err error, code ErrorCode, message string) *FolioError {
	return &FolioError{
		Code:       code,
		Message:    message,
		StatusCode: getHTTPStatusCode(code),
		Err:        err,
	}
}

// AddDetail adds a detail to the error
func (e *FolioError) AddDetail(key string, value interface{}) *FolioError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewTransport creates a transport-class error
func NewTransport(err error, message string) *FolioError {
	return Wrap(err, ErrCodeTransport, message)
}

// NewAuth creates an auth-class error
func NewAuth(err error, message string) *FolioError {
	return Wrap(err, ErrCodeAuth, message)
}

// NewData creates a record-level data error
func NewData(message string) *FolioError {
	return New(ErrCodeData, message)
}

// NewConfig creates a fatal startup configuration error
func NewConfig(message string) *FolioError {
	return New(ErrCodeConfig, message)
}

// getHTTPStatusCode maps error codes to HTTP status codes
func getHTTPStatusCode(code ErrorCode) int {
	switch code {
	case ErrCodeAuth:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeTransport:
		return http.StatusBadGateway
	case ErrCodeData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
