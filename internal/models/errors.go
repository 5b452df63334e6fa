package models

import "fmt"

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindExternal   ErrorKind = "external"
	KindTimeout    ErrorKind = "timeout"
	KindInternal   ErrorKind = "internal"
	KindNotFound   ErrorKind = "not_found"
)

type AppError struct {
	Code     string
	Message  string
	Kind     ErrorKind
	Cause    error
	Metadata map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	clone := *e
	clone.Metadata = make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		clone.Metadata[k] = v
	}
	clone.Metadata[key] = value
	return &clone
}

func newError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Kind: kind}
}

func NewValidationError(code, message string) *AppError {
	return newError(KindValidation, code, message)
}

func NewExternalError(code, message string) *AppError {
	return newError(KindExternal, code, message)
}

func NewTimeoutError(code, message string) *AppError {
	return newError(KindTimeout, code, message)
}

func NewInternalError(code, message string) *AppError {
	return newError(KindInternal, code, message)
}

func NewNotFoundError(code, message string) *AppError {
	return newError(KindNotFound, code, message)
}

var (
	ErrDialogueNotFound = NewNotFoundError("DIALOGUE_NOT_FOUND", "Dialogue context not found")
)

// MinimumNotMetError is returned by pricing when the requested hours fall
// below the city's minimum order.
type MinimumNotMetError struct {
	City     string
	MinHours int
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("minimum order for %s is %d hours", e.City, e.MinHours)
}

// CityUnsupportedError is returned by pricing when the city is neither in the
// rate table nor in the served-cities directory.
type CityUnsupportedError struct {
	City string
}

func (e *CityUnsupportedError) Error() string {
	return fmt.Sprintf("city %s is not served", e.City)
}
