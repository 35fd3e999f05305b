package service

import (
	"context"
	"errors"
	"fmt"

	"textshare/internal/repository"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("note not found")
	ErrUnauthorized     = errors.New("invalid password")
	ErrNoPassword       = errors.New("note is not password protected")
	ErrStoreUnavailable = errors.New("note store unavailable")
)

// ValidationError describes client input that was rejected. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// storeError maps repository failures onto the service error set.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNoteNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
