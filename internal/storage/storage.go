// Package storage abstracts the object store that receives query audit batches.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
	// Metadata is stored with the object as user metadata.
	Metadata map[string]string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete succeeds when the object is already gone.
	Delete(ctx context.Context, key string) error
	// List returns the objects under prefix, ordered by key. Keys are relative to the store root.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// BatchDeleter is implemented by stores that can remove many objects in one round trip. The
// returned error joins the per-key failures; deleted counts the keys that are gone.
type BatchDeleter interface {
	DeleteBatch(ctx context.Context, keys []string) (deleted int, err error)
}
