package errors

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrorType classifies the failure domains of the namespace subsystem.
type ErrorType string

const (
	// FetchError represents a failed or malformed namespace-list fetch.
	FetchError ErrorType = "fetch_error"
	// ScriptError represents a probe or load failure of the optional host
	// script. Always non-fatal.
	ScriptError ErrorType = "script_error"
	// HostIntegrationError represents a failure raised by the host SDK
	// during handler registration.
	HostIntegrationError ErrorType = "host_integration_error"
	// PersistenceError represents a storage read/write failure.
	PersistenceError ErrorType = "persistence_error"
	// ConfigurationError represents configuration-related errors.
	ConfigurationError ErrorType = "configuration_error"
)

// CustomError represents a structured error
type CustomError struct {
	Type    ErrorType
	Message string
	Err     error
	Fields  []zap.Field
}

// Error implements the error interface
func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error
func NewFetchError(message string, err error, fields ...zap.Field) *CustomError {
	return &CustomError{
		Type:    FetchError,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

// NewScriptError creates a new script error
func NewScriptError(message string, err error, fields ...zap.Field) *CustomError {
	return &CustomError{
		Type:    ScriptError,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

// NewHostIntegrationError creates a new host-integration error
func NewHostIntegrationError(message string, err error, fields ...zap.Field) *CustomError {
	return &CustomError{
		Type:    HostIntegrationError,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

// NewPersistenceError creates a new persistence error
func NewPersistenceError(message string, err error, fields ...zap.Field) *CustomError {
	return &CustomError{
		Type:    PersistenceError,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string, err error, fields ...zap.Field) *CustomError {
	return &CustomError{
		Type:    ConfigurationError,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

var (
	errorCounts = make(map[ErrorType]int)
	mutex       sync.Mutex
)

// IncrementErrorCount increments the count for a specific error type
func IncrementErrorCount(errorType ErrorType) {
	mutex.Lock()
	defer mutex.Unlock()
	errorCounts[errorType]++
}

// GetErrorCount retrieves the count for a specific error type
func GetErrorCount(errorType ErrorType) int {
	mutex.Lock()
	defer mutex.Unlock()

	return errorCounts[errorType]
}
