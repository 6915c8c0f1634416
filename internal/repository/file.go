package repository

import (
	"context"
	"errors"

	"fileshare/internal/model"
)

// ErrNotFound is returned by FindByID when no row matches.
var ErrNotFound = errors.New("file record not found")

// FileRepository is the metadata table for uploaded files.
// No business logic here, strictly persistence operations, each attempted once.
type FileRepository interface {
	// Insert stores a new row and returns it with the store-assigned ID.
	Insert(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error)

	// List returns every row, newest uploaded_at first. Nothing is cached.
	List(ctx context.Context) ([]model.FileRecord, error)

	// FindByID returns the row with the given ID or ErrNotFound.
	// If the store returns several rows the first one wins.
	FindByID(ctx context.Context, id int64) (*model.FileRecord, error)

	// Delete removes the row with the given ID.
	Delete(ctx context.Context, id int64) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
