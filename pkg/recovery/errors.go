package recovery

import (
	"context"
	"errors"
	"fmt"
)

// Error is a failure tagged with its recovery category.
type Error struct {
	Op       string
	Category Category
	Severity Severity
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with a category. A nil err stays nil; an err already tagged keeps its tag.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}

	return &Error{Op: op, Category: category, Err: err}
}

// WrapSeverity tags err with a category and an explicit severity.
func WrapSeverity(category Category, severity Severity, op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Op: op, Category: category, Severity: severity, Err: err}
}

// Classify returns the category and severity of err. Deadline expiry anywhere in the chain
// is a timeout; untagged errors are system failures.
func Classify(err error) (Category, Severity) {
	var tagged *Error
	if errors.As(err, &tagged) {
		severity := tagged.Severity
		if severity == "" {
			severity = DefaultSeverity(tagged.Category)
		}

		return tagged.Category, severity
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout, DefaultSeverity(CategoryTimeout)
	}

	return CategorySystem, DefaultSeverity(CategorySystem)
}

// CategoryOf returns the category of err.
func CategoryOf(err error) Category {
	category, _ := Classify(err)

	return category
}
