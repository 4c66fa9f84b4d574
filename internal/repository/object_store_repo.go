package repository

import (
	"context"
	"io"
)

// ObjectStore is the remote storage the catalog is read from and reports are
// delivered to.
type ObjectStore interface {
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns the names of stored objects starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	Put(ctx context.Context, name string, r io.Reader) error
	Delete(ctx context.Context, name string) error
	// Link returns the retrieval link for a stored object.
	Link(name string) string
}
