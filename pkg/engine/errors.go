package engine

import (
	"errors"

	"github.com/Stefan/orka-ppm-sub007/pkg/recovery"
)

var (
	// Validation errors: the caller can fix the input and retry.
	ErrInvalidRequest      = errors.New("invalid request")
	ErrDefinitionNotActive = errors.New("workflow definition is not active")
	ErrInvalidDecision     = errors.New("decision must be approved or rejected")
	ErrDependencyPending   = errors.New("dependency step has not been approved yet")
	ErrInvalidCondition    = errors.New("step conditions could not be evaluated")

	// Permission errors.
	ErrNotAssignedApprover   = errors.New("actor is not assigned to this approval")
	ErrInsufficientAuthority = errors.New("actor exceeds approval authority for this change")

	// State errors.
	ErrAlreadyDecided       = errors.New("approval has already been decided")
	ErrStepNotActive        = errors.New("approval step is not active")
	ErrInstanceSuspended    = errors.New("workflow instance is suspended")
	ErrInstanceClosed       = errors.New("workflow instance is closed")
	ErrIllegalTransition    = errors.New("illegal instance status transition")
	ErrStepTimedOut         = errors.New("approval step exceeded its timeout")
	ErrPublishFailed        = errors.New("instance completion could not be published")
)

// handledError marks a failure the recovery handler has already seen, so it is not
// reported twice.
type handledError struct {
	err error
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() error {
	return e.err
}

// refused reports whether err stopped the operation before it changed instance state.
func refused(err error) bool {
	switch recovery.CategoryOf(err) {
	case recovery.CategoryValidation, recovery.CategoryPermission, recovery.CategoryStateTransition:
		return true
	default:
		return false
	}
}

// IsValidationError reports whether err is a caller input problem.
func IsValidationError(err error) bool {
	return recovery.CategoryOf(err) == recovery.CategoryValidation
}

// IsPermissionError reports whether err is an authorization refusal.
func IsPermissionError(err error) bool {
	return recovery.CategoryOf(err) == recovery.CategoryPermission
}

// IsStateError reports whether err is an illegal state transition.
func IsStateError(err error) bool {
	return recovery.CategoryOf(err) == recovery.CategoryStateTransition
}
