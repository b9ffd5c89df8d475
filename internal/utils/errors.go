package utils

import (
	"errors"
	"fmt"

	"github.com/dl-alexandre/sheetport/internal/types"
)

// Exit codes
const (
	ExitSuccess = 0
	// Auth errors (10-19)
	ExitAuthFailed = 10
	// Local file errors (20-29)
	ExitIO          = 20
	ExitFormat      = 21
	ExitPath        = 22
	ExitWrite       = 23
	ExitFileMissing = 24
	// Network errors (30-39)
	ExitNetworkError = 30
	ExitTimeout      = 31
	// Validation errors (40-49)
	ExitInvalidArgument = 40
	// Remote service errors (50-59)
	ExitApplicationFailure = 50
	// Batch errors
	ExitBatchPartialFailure = 60
	// Interrupted
	ExitCancelled = 130
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeIO                  = "IO_ERROR"
	ErrCodeFormat              = "FORMAT_ERROR"
	ErrCodePath                = "PATH_ERROR"
	ErrCodeWrite               = "WRITE_ERROR"
	ErrCodeAuth                = "AUTH_ERROR"
	ErrCodeFileNotFound        = "FILE_NOT_FOUND"
	ErrCodeApplicationFailure  = "APPLICATION_FAILURE"
	ErrCodeNetworkError        = "NETWORK_ERROR"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrCodeBatchPartialFailure = "BATCH_PARTIAL_FAILURE"
	ErrCodeCancelled           = "CANCELLED"
	ErrCodeUnknown             = "UNKNOWN"
)

// CLIErrorBuilder helps construct CLIError instances
type CLIErrorBuilder struct {
	err types.CLIError
}

// NewCLIError creates a new error builder
func NewCLIError(code, message string) *CLIErrorBuilder {
	return &CLIErrorBuilder{
		err: types.CLIError{
			Code:    code,
			Message: message,
		},
	}
}

func (b *CLIErrorBuilder) WithHTTPStatus(status int) *CLIErrorBuilder {
	b.err.HTTPStatus = status
	return b
}

func (b *CLIErrorBuilder) WithRetryable(retryable bool) *CLIErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *CLIErrorBuilder) WithContext(key string, value interface{}) *CLIErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *CLIErrorBuilder) Build() types.CLIError {
	return b.err
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	mapping := map[string]int{
		ErrCodeIO:                  ExitIO,
		ErrCodeFormat:              ExitFormat,
		ErrCodePath:                ExitPath,
		ErrCodeWrite:               ExitWrite,
		ErrCodeAuth:                ExitAuthFailed,
		ErrCodeFileNotFound:        ExitFileMissing,
		ErrCodeApplicationFailure:  ExitApplicationFailure,
		ErrCodeNetworkError:        ExitNetworkError,
		ErrCodeTimeout:             ExitTimeout,
		ErrCodeInvalidArgument:     ExitInvalidArgument,
		ErrCodeBatchPartialFailure: ExitBatchPartialFailure,
		ErrCodeCancelled:           ExitCancelled,
	}
	if code, ok := mapping[errorCode]; ok {
		return code
	}
	return ExitUnknown
}

// AppError is a custom error type that carries CLI error info
type AppError struct {
	CLIError types.CLIError
	cause    error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.CLIError.Code, e.CLIError.Message)
}

// Unwrap exposes the underlying cause, if any
func (e *AppError) Unwrap() error {
	return e.cause
}

// NewAppError creates an AppError from a CLIError
func NewAppError(cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr}
}

// WrapAppError creates an AppError that keeps cause in its chain
func WrapAppError(cliErr types.CLIError, cause error) *AppError {
	return &AppError{CLIError: cliErr, cause: cause}
}

// ErrorCode returns the CLI error code carried by err, or ErrCodeUnknown
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.CLIError.Code
	}
	return ErrCodeUnknown
}

// AsCLIError converts any error into a CLIError for output
func AsCLIError(err error) types.CLIError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.CLIError
	}
	return NewCLIError(ErrCodeUnknown, err.Error()).Build()
}
