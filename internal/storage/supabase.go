package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"fileshare/internal/remote"
)

// supabaseStorage talks to the Supabase storage REST API.
// It is safe for concurrent use by multiple goroutines.
type supabaseStorage struct {
	client *remote.Client
	bucket string
}

// NewSupabase creates a storage client for bucket on the service behind client.
func NewSupabase(client *remote.Client, bucket string) (Storage, error) {
	if client == nil || client.BaseURL() == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	return &supabaseStorage{client: client, bucket: bucket}, nil
}

// Upload posts the raw bytes. The storage API answers 200 on creation; any other
// status, including 201, is a failure.
func (s *supabaseStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	const op = "upload"
	header := http.Header{}
	header.Set("Content-Type", contentType)

	resp, err := s.client.Do(ctx, op, http.MethodPost, s.objectPath(key), r, size, header)
	if err != nil {
		return err
	}
	return remote.Expect(op, resp, http.StatusOK)
}

// Delete removes the object; 200 and 204 both count as success.
func (s *supabaseStorage) Delete(ctx context.Context, key string) error {
	const op = "delete object"
	resp, err := s.client.Do(ctx, op, http.MethodDelete, s.objectPath(key), nil, -1, nil)
	if err != nil {
		return err
	}
	return remote.Expect(op, resp, http.StatusOK, http.StatusNoContent)
}

func (s *supabaseStorage) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.client.BaseURL(), s.bucket, key)
}

func (s *supabaseStorage) objectPath(key string) string {
	return fmt.Sprintf("/storage/v1/object/%s/%s", s.bucket, EncodeKey(key))
}

// EncodeKey percent-encodes each "/"-separated segment of key on its own, so a
// logical "a/b c" becomes the nested path "a/b%20c".
func EncodeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
