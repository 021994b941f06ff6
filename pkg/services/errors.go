// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Stefan/orka-ppm-sub007/pkg/persistence"
	"github.com/Stefan/orka-ppm-sub007/pkg/templates"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidDefinition = errors.New("invalid workflow definition")
	ErrInvalidStatus     = errors.New("invalid definition status")

	// Not Found (404).
	ErrDefinitionNotFound = persistence.ErrDefinitionNotFound

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyActive  = errors.New("only draft definitions can be modified")
	ErrIllegalStatusChange = errors.New("illegal definition status change")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string   // Operation name
	Code    string   // Error code for API responses
	Message string   // Human-readable message
	Details []string // Individual validation failures, if any
	Err     error    // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" && len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Message, strings.Join(e.Details, "; "))
	}

	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, templates.ErrInvalidCustomization)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyActive) ||
		errors.Is(err, ErrIllegalStatusChange) ||
		errors.Is(err, templates.ErrTemplateAlreadyExists)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err) || errors.Is(err, templates.ErrTemplateNotFound)
}

// Details returns the individual validation failures carried by err.
func Details(err error) []string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Details
	}

	return nil
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, details []string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Details: details,
		Err:     err,
	}
}
