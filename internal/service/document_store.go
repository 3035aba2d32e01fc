package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docstore/internal/keyname"
	"docstore/internal/logger"
	"docstore/internal/model"
	"docstore/internal/storage"
)

// Config is the initial configuration of a document store.
type Config struct {
	Bucket        string
	KeyNamePrefix string
	// PublicBaseURL is used by URL. Defaults to https://s3.amazonaws.com.
	PublicBaseURL string
}

// DocumentStore uploads, locates, downloads and deletes documents addressed by key name
// inside a single bucket of an object storage backend.
type DocumentStore interface {
	// CreateFromFile uploads the local file at path under keyName.
	CreateFromFile(ctx context.Context, path, keyName string) (*model.DocumentFile, error)

	// Create uploads size bytes read from r under keyName. An existing document is overwritten.
	// The returned file carries the prefixed key in both KeyName and Name.
	Create(ctx context.Context, r io.Reader, keyName string, size int64) (*model.DocumentFile, error)

	// Find returns the document stored under keyName, or nil when the listing under the
	// prefixed key holds zero or more than one object.
	Find(ctx context.Context, keyName string) (*model.DocumentFile, error)

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, keyName string) error

	// Download writes the document content to destination and returns destination.
	Download(ctx context.Context, keyName, destination string) (string, error)

	// Fetch returns the document content.
	Fetch(ctx context.Context, keyName string) ([]byte, error)

	// URL returns the public address of the document.
	URL(keyName string) (string, error)

	Bucket() (string, error)
	SetBucket(bucket string)
	SetKeyNamePrefix(prefix string)
}

// documentStore is the concrete implementation of DocumentStore.
// Configuration can change at any time; every call works on the snapshot taken when it starts.
type documentStore struct {
	backend storage.Backend
	tracer  trace.Tracer

	publicBaseURL string

	mu            sync.RWMutex
	bucket        string
	keyNamePrefix string
}

// NewDocumentStore constructs a new DocumentStore on top of backend.
func NewDocumentStore(backend storage.Backend, cfg Config) DocumentStore {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = "https://s3.amazonaws.com"
	}
	return &documentStore{
		backend:       backend,
		tracer:        otel.Tracer("docstore/internal/service"),
		bucket:        cfg.Bucket,
		keyNamePrefix: cfg.KeyNamePrefix,
		publicBaseURL: base,
	}
}

type snapshot struct {
	bucket string
	prefix string
}

func (s *documentStore) snapshot(op, keyName string) (snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bucket == "" {
		return snapshot{}, opError(op, "", keyName, ErrBucketNotConfigured)
	}
	return snapshot{bucket: s.bucket, prefix: s.keyNamePrefix}, nil
}

func (s *documentStore) Bucket() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bucket == "" {
		return "", ErrBucketNotConfigured
	}
	return s.bucket, nil
}

func (s *documentStore) SetBucket(bucket string) {
	s.mu.Lock()
	s.bucket = bucket
	s.mu.Unlock()
}

func (s *documentStore) SetKeyNamePrefix(prefix string) {
	s.mu.Lock()
	s.keyNamePrefix = prefix
	s.mu.Unlock()
}

func (s *documentStore) start(ctx context.Context, op, keyName string) (context.Context, trace.Span, *zerolog.Logger) {
	ctx, span := s.tracer.Start(ctx, "docstore."+op, trace.WithAttributes(attribute.String("docstore.key_name", keyName)))
	l := logger.FromContext(ctx).With().
		Str("component", "docstore").
		Str("operation", op).
		Str("key_name", keyName).
		Logger()
	return ctx, span, &l
}

func finish(span trace.Span, l *zerolog.Logger, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.Error().Err(err).Str("status", "error").Msg("document store operation failed")
	} else {
		l.Debug().Str("status", "success").Msg("document store operation done")
	}
	span.End()
}

func (s *documentStore) CreateFromFile(ctx context.Context, path, keyName string) (doc *model.DocumentFile, err error) {
	ctx, span, l := s.start(ctx, "create", keyName)
	defer func() { finish(span, l, err) }()

	f, err := os.Open(path)
	if err != nil {
		return nil, ioError("create", "", keyName, fmt.Errorf("open %q: %w", path, err))
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, ioError("create", "", keyName, fmt.Errorf("stat %q: %w", path, err))
	}
	if st.IsDir() {
		return nil, ioError("create", "", keyName, fmt.Errorf("%q is a directory", path))
	}
	return s.create(ctx, f, keyName, st.Size())
}

func (s *documentStore) Create(ctx context.Context, r io.Reader, keyName string, size int64) (doc *model.DocumentFile, err error) {
	ctx, span, l := s.start(ctx, "create", keyName)
	defer func() { finish(span, l, err) }()

	if r == nil {
		return nil, ioError("create", "", keyName, fmt.Errorf("reader is nil"))
	}
	return s.create(ctx, r, keyName, size)
}

func (s *documentStore) create(ctx context.Context, r io.Reader, keyName string, size int64) (*model.DocumentFile, error) {
	snap, err := s.snapshot("create", keyName)
	if err != nil {
		return nil, err
	}
	key := keyname.Compose(snap.prefix, keyName)

	if err := s.backend.Put(ctx, snap.bucket, key, r, size); err != nil {
		return nil, ioError("create", snap.bucket, key, err)
	}

	// KeyName and Name both hold the prefixed key here, unlike Find.
	now := time.Now()
	return &model.DocumentFile{
		KeyName:        key,
		Name:           key,
		LastAccessDate: &now,
		LastUpdateDate: now,
		Size:           size,
	}, nil
}

func (s *documentStore) Find(ctx context.Context, keyName string) (doc *model.DocumentFile, err error) {
	ctx, span, l := s.start(ctx, "find", keyName)
	defer func() { finish(span, l, err) }()

	snap, err := s.snapshot("find", keyName)
	if err != nil {
		return nil, err
	}
	prefix := keyname.Compose(snap.prefix, keyName)

	objects, err := s.backend.List(ctx, snap.bucket, prefix)
	if err != nil {
		return nil, opError("find", snap.bucket, prefix, err)
	}
	span.SetAttributes(attribute.Int("docstore.matches", len(objects)))
	if len(objects) != 1 {
		return nil, nil
	}

	obj := objects[0]
	return &model.DocumentFile{
		KeyName:        keyname.Decompose(snap.prefix, obj.Key),
		Name:           model.BaseName(obj.Key),
		LastUpdateDate: obj.LastModified,
	}, nil
}

func (s *documentStore) Delete(ctx context.Context, keyName string) (err error) {
	ctx, span, l := s.start(ctx, "delete", keyName)
	defer func() { finish(span, l, err) }()

	snap, err := s.snapshot("delete", keyName)
	if err != nil {
		return err
	}
	key := keyname.Compose(snap.prefix, keyName)

	if err := s.backend.Delete(ctx, snap.bucket, key); err != nil {
		return opError("delete", snap.bucket, key, err)
	}
	return nil
}

func (s *documentStore) Fetch(ctx context.Context, keyName string) (data []byte, err error) {
	ctx, span, l := s.start(ctx, "fetch", keyName)
	defer func() { finish(span, l, err) }()

	return s.fetch(ctx, "fetch", keyName)
}

func (s *documentStore) fetch(ctx context.Context, op, keyName string) ([]byte, error) {
	snap, err := s.snapshot(op, keyName)
	if err != nil {
		return nil, err
	}
	key := keyname.Compose(snap.prefix, keyName)

	data, err := s.backend.Get(ctx, snap.bucket, key)
	if err != nil {
		return nil, ioError(op, snap.bucket, key, err)
	}
	return data, nil
}

func (s *documentStore) Download(ctx context.Context, keyName, destination string) (_ string, err error) {
	ctx, span, l := s.start(ctx, "download", keyName)
	defer func() { finish(span, l, err) }()

	data, err := s.fetch(ctx, "download", keyName)
	if err != nil {
		return "", err
	}

	if err := writeFileAtomic(destination, data); err != nil {
		return "", ioError("download", "", keyName, err)
	}
	return destination, nil
}

// writeFileAtomic writes data next to path and renames it into place, so a failed
// write never leaves a truncated destination behind.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %q: %w", path, err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(fmt.Errorf("write %q: %w", path, err))
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(fmt.Errorf("chmod %q: %w", path, err))
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("close %q: %w", path, err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into %q: %w", path, err)
	}
	return nil
}

func (s *documentStore) URL(keyName string) (string, error) {
	snap, err := s.snapshot("url", keyName)
	if err != nil {
		return "", err
	}
	return s.publicBaseURL + "/" + snap.bucket + "/" + keyname.Compose(snap.prefix, keyName), nil
}
