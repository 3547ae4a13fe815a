// Package store defines the member record and the persistence contract used by the bot.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a user.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned by Create for a registered user.
	ErrAlreadyExists = errors.New("record already exists")
)

// Record is one group member. Optional fields are nil when absent.
type Record struct {
	UserID      int64
	Username    *string
	DisplayName *string
	Birthday    *time.Time
	PhotoID     *string

	// PhotoFetchedAt is when the photo was last downloaded to local storage.
	PhotoFetchedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBirthday reports whether a birthday is registered.
func (r Record) HasBirthday() bool { return r.Birthday != nil && !r.Birthday.IsZero() }

// PhotoStale reports whether the local photo copy predates the last profile change.
func (r Record) PhotoStale() bool {
	if r.PhotoID == nil {
		return false
	}
	return r.PhotoFetchedAt == nil || r.PhotoFetchedAt.Before(r.UpdatedAt)
}

// Value dereferences an optional string, returning "" when absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Store persists member records.
type Store interface {
	// Create registers a user; ErrAlreadyExists when the user is known.
	Create(ctx context.Context, userID int64, username string) (Record, error)
	// Get returns ErrNotFound for unknown users.
	Get(ctx context.Context, userID int64) (Record, error)
	// All returns every record in registration order.
	All(ctx context.Context) ([]Record, error)
	// Upsert applies u to the user's record, creating it when missing.
	Upsert(ctx context.Context, userID int64, u Update) (Record, error)
	// MarkPhotoFetched records when the local photo copy was refreshed.
	MarkPhotoFetched(ctx context.Context, userID int64, at time.Time) error
	Close() error
}
