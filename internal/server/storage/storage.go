// Package storage abstracts the flat key-addressed object store holding all
// file content. The engine only ever needs put/get/copy/delete and presigned
// download URLs; anything rename-like is composed from copy+delete above
// this interface because blob stores have no atomic rename.
package storage

import (
	"context"
	"time"
)

// ObjectStore is the capability consumed by the filesystem engine. All calls
// are potentially blocking network I/O and honor ctx cancellation.
type ObjectStore interface {
	// Put writes body under key, overwriting any existing object.
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// Get returns the full object content.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteMany removes a batch of objects, skipping missing keys.
	DeleteMany(ctx context.Context, keys []string) error
	// Copy duplicates srcKey's content under dstKey.
	Copy(ctx context.Context, srcKey, dstKey string) error
	// Exists reports whether key holds an object.
	Exists(ctx context.Context, key string) (bool, error)
	// PresignGet returns a time-limited download URL for key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
