// Package blob abstracts the media object store. The relay only ever holds
// storage IDs; bytes live in an S3-compatible backend (or in memory when no
// backend is configured).
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a storage ID does not resolve.
var ErrNotFound = errors.New("blob: not found")

// Store persists binary media and resolves references back to URLs.
type Store interface {
	// Put stores bytes and returns an opaque storage ID.
	Put(ctx context.Context, data []byte, contentType string) (string, error)

	// Resolve returns a fetchable URL for a stored object.
	Resolve(ctx context.Context, storageID string) (string, error)
}

// NewStorageKey builds a date-prefixed object key for a new upload.
func NewStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("media/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}
