package ctdf

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any state was touched
	ErrValidation = errors.New("validation error")
	// ErrInvalidSelection is a validation failure of a pickup/drop choice
	ErrInvalidSelection = fmt.Errorf("invalid selection: %w", ErrValidation)
	// ErrNotFound is an expected, non exceptional miss
	ErrNotFound = errors.New("not found")
	// ErrResourceExhausted is returned when a bounded retry loop gives up
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrDependency wraps failures of the document store, identity provider or blob store
	ErrDependency = errors.New("dependency error")
)

func NewValidationError(message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, message)
}

func NewInvalidSelectionError(message string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSelection, message)
}

func NewNotFoundError(what string, identifier string) error {
	return fmt.Errorf("%s %q: %w", what, identifier, ErrNotFound)
}

func NewDependencyError(dependency string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDependency, dependency, err)
}
