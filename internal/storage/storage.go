package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package storage contains the object storage backends used by the document store.
// Every backend addresses objects by bucket and full (prefixed) key.

// ErrNotFound is returned by Get when the bucket or the key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectSummary is one entry of a listing.
type ObjectSummary struct {
	Key          string
	LastModified time.Time
}

// Backend is the object storage capability consumed by the document store.
type Backend interface {
	// Put uploads size bytes read from r under bucket/key, overwriting any existing object.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error
	// Get returns the content of bucket/key, or ErrNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// Delete removes bucket/key. Removing a missing key is not an error.
	Delete(ctx context.Context, bucket, key string) error
	// List returns the objects of bucket whose key starts with prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectSummary, error)
}

// Pinger is implemented by backends able to report their availability.
type Pinger interface {
	Ping(ctx context.Context) error
}
