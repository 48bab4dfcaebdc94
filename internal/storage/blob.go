package storage

import (
	"context"
	"io"
)

// BlobStore holds file answers and export artifacts.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, key string) (string, error) // fs returns "file://..." for dev
	Delete(ctx context.Context, key string) error             // a missing key is not an error
}
