package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input the caller can correct.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StateError reports an action illegal in the entity's current state.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string { return e.Msg }

func Statef(format string, args ...any) error {
	return &StateError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransition builds the StateError for a rejected status edge.
func InvalidTransition(from, to OrderStatus) error {
	return Statef("cannot change status from %s to %s", from, to)
}

// NotFoundError reports an unknown id or reference.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func NotFound(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
