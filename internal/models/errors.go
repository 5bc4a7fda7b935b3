package models

import (
	"errors"
	"fmt"
)

// Validation failures for a device state record.
var (
	ErrInvalidEnumValue = errors.New("invalid enum value")
	ErrOutOfRange       = errors.New("out of range")
)

// FieldError names the record field that failed validation.
// It unwraps to ErrInvalidEnumValue or ErrOutOfRange.
type FieldError struct {
	Field string
	Value int
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Field, e.Err, e.Value)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func invalidEnum(field string, v int) *FieldError {
	return &FieldError{Field: field, Value: v, Err: ErrInvalidEnumValue}
}

func outOfRange(field string, v int) *FieldError {
	return &FieldError{Field: field, Value: v, Err: ErrOutOfRange}
}
