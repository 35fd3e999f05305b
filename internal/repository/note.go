package repository

import (
	"context"
	"errors"
	"time"

	"textshare/internal/model"
)

var (
	// ErrNoteNotFound is returned when no note exists under the requested name.
	ErrNoteNotFound = errors.New("note not found")
	// ErrUnavailable marks timeouts and connection failures of the backing store.
	// Callers may retry operations that fail with it.
	ErrUnavailable = errors.New("store unavailable")
)

// UpsertParams carries the values for a create-or-update by name.
// Nil PasswordHash or ExpiresAt leave the stored values of an existing live note untouched.
// Now is the creation time for new notes and the reference time used to decide whether
// an existing note has already expired, in which case it is replaced as if absent.
type UpsertParams struct {
	ID           string
	Name         string
	Content      string
	PasswordHash *string
	ExpiresAt    *time.Time
	Now          time.Time
}

// NoteRepository defines persistence for notes. No business logic here.
// Implementations must apply each Upsert atomically for the note it touches.
type NoteRepository interface {
	// Upsert creates the note or updates it in place and returns the stored record.
	Upsert(ctx context.Context, p UpsertParams) (*model.Note, error)

	// FindByName returns the note stored under name, expired or not.
	FindByName(ctx context.Context, name string) (*model.Note, error)

	// DeleteIfExpired removes the note only if its expiry lies before now.
	// It returns nil when nothing was deleted.
	DeleteIfExpired(ctx context.Context, name string, now time.Time) error

	// DeleteExpired removes every note whose expiry lies before now and returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
