// Package storage defines the blob store interface the archive
// uploader writes through. The abstraction keeps the uploader
// independent of the concrete backend (Google Cloud Storage, local
// filesystem for smoke runs, or in-memory for tests).
package storage

import (
	"context"
	"io"
)

// BlobStore persists one object per key. Putting the same key twice
// overwrites the previous object, which is what makes whole-tree
// re-uploads safe.
type BlobStore interface {
	// PutObject writes data under key and returns the backend URI of
	// the stored object.
	PutObject(ctx context.Context, key string, contentType string, data io.Reader) (string, error)
}

// NoOpStore discards objects. Useful for dry runs where sites are
// mirrored but nothing is archived.
type NoOpStore struct{}

// PutObject drains the reader and reports a null URI.
func (NoOpStore) PutObject(_ context.Context, key string, _ string, data io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, data); err != nil {
		return "", err
	}
	return "noop://" + key, nil
}
