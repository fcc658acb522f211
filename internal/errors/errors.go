// Package errors defines the application error taxonomy. Every error type
// carries a stable code so callers at the edges (chat handlers, HTTP API)
// can map failures to replies and status codes without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown            = "UNKNOWN"
	CodeDatabase           = "DATABASE"
	CodeValidation         = "VALIDATION"
	CodeConfig             = "CONFIG"
	CodePermission         = "PERMISSION"
	CodeUnknownUser        = "UNKNOWN_USER"
	CodeParse              = "PARSE"
	CodeDelivery           = "DELIVERY"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// appError is the shared implementation embedded by every error type.
type appError struct {
	code    string
	message string
	err     error
}

func (e *appError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *appError) Code() string {
	return e.code
}

func (e *appError) Unwrap() error {
	return e.err
}

// Message returns the error message without the wrapped cause.
func (e *appError) Message() string {
	return e.message
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if there is none.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}

func newBase(code, message string, cause error) appError {
	return appError{code: code, message: message, err: cause}
}

type DatabaseError struct{ appError }

func NewDatabaseError(message string, cause error) error {
	return &DatabaseError{newBase(CodeDatabase, message, cause)}
}

type ValidationError struct{ appError }

func NewValidationError(message string, cause error) error {
	return &ValidationError{newBase(CodeValidation, message, cause)}
}

type ConfigError struct{ appError }

func NewConfigError(message string, cause error) error {
	return &ConfigError{newBase(CodeConfig, message, cause)}
}

// PermissionError is returned when the actor lacks the right to perform an
// operation or the chat type does not allow it.
type PermissionError struct{ appError }

func NewPermissionError(message string) error {
	return &PermissionError{newBase(CodePermission, message, nil)}
}

// UnknownUserError names the mention that could not be resolved to a
// registered user.
type UnknownUserError struct {
	appError
	Mention string
}

func NewUnknownUserError(mention string) error {
	return &UnknownUserError{
		appError: newBase(CodeUnknownUser, fmt.Sprintf("unknown user %s", mention), nil),
		Mention:  mention,
	}
}

// ParseError reports a task description that could not be understood.
type ParseError struct{ appError }

func NewParseError(message string, cause error) error {
	return &ParseError{newBase(CodeParse, message, cause)}
}

// DeliveryError wraps a failed outbound chat message.
type DeliveryError struct {
	appError
	ChatID int64
}

func NewDeliveryError(chatID int64, cause error) error {
	return &DeliveryError{
		appError: newBase(CodeDelivery, fmt.Sprintf("failed to deliver message to chat %d", chatID), cause),
		ChatID:   chatID,
	}
}

// ServiceUnavailableError is returned when an external dependency is down
// or its circuit breaker is open.
type ServiceUnavailableError struct{ appError }

func NewServiceUnavailableError(message string, cause error) error {
	return &ServiceUnavailableError{newBase(CodeServiceUnavailable, message, cause)}
}

type NotFoundError struct{ appError }

func NewNotFoundError(message string) error {
	return &NotFoundError{newBase(CodeNotFound, message, nil)}
}

type ConflictError struct{ appError }

func NewConflictError(message string, cause error) error {
	return &ConflictError{newBase(CodeConflict, message, cause)}
}
