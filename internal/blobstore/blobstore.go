// Package blobstore stores pipeline artifacts in an S3-compatible object
// store. Keys are deterministic per video so completed work is reusable.
package blobstore

import (
	"context"
	"io"
	"time"
)

// Store is the artifact storage surface the pipeline depends on.
type Store interface {
	// Exists reports whether an object is present under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Get streams an object's content. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// PutFile uploads a local file under key.
	PutFile(ctx context.Context, key, localPath, contentType string) error
	// PutBytes uploads an in-memory payload under key.
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// SignedURL returns a presigned download URL valid for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
