package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable identifier of an engine failure.
type ErrorCode string

const (
	CodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	CodeEmptyInput       ErrorCode = "EMPTY_INPUT"
	CodeInsufficientData ErrorCode = "INSUFFICIENT_DATA"
	CodeMissingColumn    ErrorCode = "MISSING_COLUMN"
	CodeMalformedInput   ErrorCode = "MALFORMED_INPUT"
	CodeNoRawData        ErrorCode = "NO_RAW_DATA"
	CodeNoProcessedData  ErrorCode = "NO_PROCESSED_DATA"
	CodeOutOfOrderCall   ErrorCode = "OUT_OF_ORDER_CALL"
	CodeInvalidDuration  ErrorCode = "INVALID_DURATION"
)

// AppError represents a fatal engine error
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code, so callers
// can match against the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is. They are matched by code only.
var (
	ErrInvalidConfig    = &AppError{Code: CodeInvalidConfig}
	ErrEmptyInput       = &AppError{Code: CodeEmptyInput}
	ErrInsufficientData = &AppError{Code: CodeInsufficientData}
	ErrMissingColumn    = &AppError{Code: CodeMissingColumn}
	ErrMalformedInput   = &AppError{Code: CodeMalformedInput}
	ErrNoRawData        = &AppError{Code: CodeNoRawData}
	ErrNoProcessedData  = &AppError{Code: CodeNoProcessedData}
	ErrOutOfOrderCall   = &AppError{Code: CodeOutOfOrderCall}
	ErrInvalidDuration  = &AppError{Code: CodeInvalidDuration}
)

// CodeOf extracts the code of the first AppError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

// Helper functions for common error types

// NewInvalidConfigError creates a configuration error
func NewInvalidConfigError(message string, cause error) *AppError {
	return NewAppError(CodeInvalidConfig, message, cause)
}

// NewEmptyInputError reports CSV content with nothing in it
func NewEmptyInputError() *AppError {
	return NewAppError(CodeEmptyInput, "CSV content is empty", nil)
}

// NewInsufficientDataError reports input without any usable data rows
func NewInsufficientDataError(message string) *AppError {
	return NewAppError(CodeInsufficientData, message, nil)
}

// NewMissingColumnError reports a configured column absent from the header
func NewMissingColumnError(column string, available []string) *AppError {
	return NewAppError(CodeMissingColumn, fmt.Sprintf("column %q not found in CSV header", column), nil).
		WithContext("column", column).
		WithContext("available", available)
}

// NewMalformedInputError reports content the analyzer cannot make sense of
func NewMalformedInputError(message string) *AppError {
	return NewAppError(CodeMalformedInput, message, nil)
}

// NewNoRawDataError is returned when transform runs before parse
func NewNoRawDataError() *AppError {
	return NewAppError(CodeNoRawData, "no raw data: call ParseCSV before TransformData", nil)
}

// NewNoProcessedDataError is returned when generate runs before transform
func NewNoProcessedDataError() *AppError {
	return NewAppError(CodeNoProcessedData, "no processed data: call TransformData before GenerateFrameData", nil)
}

// NewOutOfOrderCallError reports a step repeated within one request
func NewOutOfOrderCallError(step, state string) *AppError {
	return NewAppError(CodeOutOfOrderCall, fmt.Sprintf("%s cannot run in state %s", step, state), nil).
		WithContext("step", step).
		WithContext("state", state)
}

// NewInvalidDurationError reports a duration that is not a positive finite number
func NewInvalidDurationError(duration float64) *AppError {
	return NewAppError(CodeInvalidDuration, fmt.Sprintf("duration must be a positive finite number of seconds, got %v", duration), nil).
		WithContext("duration", duration)
}

// NewTooManyFramesError reports a duration that would need more than limit frames at fps
func NewTooManyFramesError(duration float64, fps, limit int) *AppError {
	return NewAppError(CodeInvalidDuration,
		fmt.Sprintf("duration %vs at %d fps exceeds the limit of %d frames", duration, fps, limit), nil).
		WithContext("duration", duration).
		WithContext("fps", fps).
		WithContext("max_frames", limit)
}
