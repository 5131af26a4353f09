// Package errors provides domain-specific error types for the hearthgate gateway.
//
// This package defines structured errors with error codes, making it easier to handle
// and test different error conditions consistently across the application.
package errors

import "fmt"

// ErrorCode represents a category of error that can occur in the application.
type ErrorCode string

const (
	// ErrCodeConfig indicates a configuration-related error.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeRule indicates a kernel rule/table operation failure
	// (iptables, ip rules, routing tables) other than a benign
	// "already exists" condition.
	ErrCodeRule ErrorCode = "RULE_ERROR"

	// ErrCodeProcess indicates that a subordinate service failed to start.
	ErrCodeProcess ErrorCode = "PROCESS_ERROR"

	// ErrCodeDependencyNotReady indicates that a service did not become
	// ready within its readiness probe budget.
	ErrCodeDependencyNotReady ErrorCode = "DEPENDENCY_NOT_READY"

	// ErrCodeStorage indicates a persistent storage error.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"

	// ErrCodeDNS indicates an error in the DNS monitor.
	ErrCodeDNS ErrorCode = "DNS_ERROR"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error represents a domain-specific error with an error code and optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error for errors.Is and errors.As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new domain error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCodeConfig, message, cause)
}

// NewRuleError creates a new kernel rule operation error.
func NewRuleError(message string, cause error) *Error {
	return Wrap(ErrCodeRule, message, cause)
}

// NewProcessError creates a new service start error.
func NewProcessError(message string, cause error) *Error {
	return Wrap(ErrCodeProcess, message, cause)
}

// NewDependencyNotReadyError creates a new readiness timeout error.
func NewDependencyNotReadyError(message string, cause error) *Error {
	return Wrap(ErrCodeDependencyNotReady, message, cause)
}

// NewStorageError creates a new persistent storage error.
func NewStorageError(message string, cause error) *Error {
	return Wrap(ErrCodeStorage, message, cause)
}

// NewDNSError creates a new DNS monitor error.
func NewDNSError(message string, cause error) *Error {
	return Wrap(ErrCodeDNS, message, cause)
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCodeInternal, message, cause)
}
