package storage

import (
	"context"
	"io"
)

// DocumentStore is the interface for manuscript document storage. Backed by
// any S3-compatible service (AWS S3, MinIO, Cloudflare R2).
type DocumentStore interface {
	// Upload stores a manuscript under the given key
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download streams a stored manuscript
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the public URL for a stored manuscript
	GetURL(key string) string

	// Delete removes a stored manuscript
	Delete(ctx context.Context, key string) error

	// Exists checks if a manuscript exists under the key
	Exists(ctx context.Context, key string) (bool, error)
}
