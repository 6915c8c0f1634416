package storage

import (
	"context"
	"io"
)

// Package storage contains the object storage abstraction used by the file
// lifecycle workflows, with an HTTP backend for the Supabase storage API and an
// S3-compatible backend built on MinIO.

// Storage uploads and deletes blobs by key and builds their public URLs.
// Each call is attempted exactly once.
type Storage interface {
	// Upload stores size bytes from r under key with the given content type.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the unauthenticated download URL for key. No network call is made
	// and key is used verbatim.
	PublicURL(key string) string
}
