package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrPermission    = errors.New("permission denied")
	ErrTransient     = errors.New("store temporarily unavailable")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, item.Field+" "+item.Message)
	}
	return fmt.Sprintf("validation: %s", strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// CounterDriftWarning reports a denormalized counter that no longer matches its
// backing records. It is logged, never returned to a user.
type CounterDriftWarning struct {
	PostID  string `json:"post_id"`
	Field   string `json:"field"`
	Stored  int64  `json:"stored"`
	Counted int64  `json:"counted"`
	Delta   int64  `json:"delta"`
	Cause   error  `json:"-"`
}

func (w *CounterDriftWarning) Error() string {
	if w.Cause != nil {
		return fmt.Sprintf("counter drift on post %s (%s, missed %+d): %v", w.PostID, w.Field, w.Delta, w.Cause)
	}
	return fmt.Sprintf("counter drift on post %s (%s stored %d, counted %d)", w.PostID, w.Field, w.Stored, w.Counted)
}

func (w *CounterDriftWarning) Unwrap() error { return w.Cause }
