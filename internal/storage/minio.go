package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docstore/internal/config"
)

// MinIO implements Backend using an S3-compatible server (MinIO, AWS S3, etc.).
// It is safe for concurrent use by multiple goroutines.
type MinIO struct {
	client *minio.Client
}

var (
	_ Backend = (*MinIO)(nil)
	_ Pinger  = (*MinIO)(nil)
)

// NewMinIO creates a new S3-compatible backend backed by the MinIO client.
// HTTP calls to the server are traced through otelhttp.
func NewMinIO(cfg config.MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{client: cli}, nil
}

// EnsureBucket creates bucket if it does not exist yet.
func (m *MinIO) EnsureBucket(ctx context.Context, bucket string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Put uploads an object using streaming I/O only.
func (m *MinIO) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	if _, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("minio put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get downloads the whole object content.
func (m *MinIO) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.mapErr("get", bucket, key, err)
	}
	defer obj.Close()

	// GetObject is lazy: a missing key only surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.mapErr("get", bucket, key, err)
	}
	return data, nil
}

// Delete removes an object by key. S3 reports success for missing keys.
func (m *MinIO) Delete(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// List walks every object under prefix, recursively.
func (m *MinIO) List(ctx context.Context, bucket, prefix string) ([]ObjectSummary, error) {
	out := make([]ObjectSummary, 0)
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list %s/%s: %w", bucket, prefix, obj.Err)
		}
		out = append(out, ObjectSummary{Key: obj.Key, LastModified: obj.LastModified})
	}
	return out, nil
}

// Ping checks that the server answers.
func (m *MinIO) Ping(ctx context.Context) error {
	_, err := m.client.ListBuckets(ctx)
	return err
}

func (m *MinIO) mapErr(op, bucket, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("minio %s %s/%s: %w", op, bucket, key, ErrNotFound)
	}
	return fmt.Errorf("minio %s %s/%s: %w", op, bucket, key, err)
}
