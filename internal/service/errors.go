package service

import (
	"errors"
	"fmt"
)

var (
	// ErrBucketNotConfigured means the store was used before a bucket was set. It is never retryable.
	ErrBucketNotConfigured = errors.New("no bucket has been configured")
	// ErrIO covers local file failures and backend read or write failures.
	ErrIO = errors.New("document store i/o error")
)

// Error records the operation, bucket and key of a failed document store call.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Bucket == "" {
		return fmt.Sprintf("docstore %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("docstore %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op, bucket, key string, err error) error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

// ioError tags err with ErrIO while keeping the cause reachable through errors.Is.
func ioError(op, bucket, key string, err error) error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: fmt.Errorf("%w: %w", ErrIO, err)}
}
