// Package storage keeps the raw statement files behind each import, one
// directory per profile, so a statement can be inspected or imported again.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("statement not found")

// StatementInfo describes an archived statement file.
type StatementInfo struct {
	ID          uuid.UUID `json:"id"`
	ProfileID   uuid.UUID `json:"profile_id"`
	Name        string    `json:"name"`
	Format      string    `json:"format"`
	ContentHash string    `json:"content_hash"`
	Size        int64     `json:"size"`
	Path        string    `json:"path"` // relative to the profile directory
	ArchivedAt  time.Time `json:"archived_at"`
}

// Archive stores statement files.
type Archive interface {
	// Store saves r. A statement whose content hash is already archived for the
	// profile is not written again; the existing entry is returned.
	Store(ctx context.Context, profileID uuid.UUID, name, format, contentHash string, r io.Reader) (*StatementInfo, error)

	// Open returns the file contents.
	Open(ctx context.Context, profileID, id uuid.UUID) (io.ReadCloser, *StatementInfo, error)

	// List returns a profile's statements, newest first.
	List(ctx context.Context, profileID uuid.UUID) ([]*StatementInfo, error)

	Delete(ctx context.Context, profileID, id uuid.UUID) error
}
