package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"docstore/internal/storage"
)

// ObjectsPostgres stores objects as rows of the objects table, keyed by (bucket, key).
// Buckets need no creation: a bucket exists as soon as one of its rows does.
type ObjectsPostgres struct {
	db *sql.DB
}

// NewObjectsPostgres creates a new PostgreSQL-backed storage.Backend.
func NewObjectsPostgres(db *sql.DB) *ObjectsPostgres {
	return &ObjectsPostgres{db: db}
}

var (
	_ storage.Backend = (*ObjectsPostgres)(nil)
	_ storage.Pinger  = (*ObjectsPostgres)(nil)
)

// Put upserts the object content.
func (r *ObjectsPostgres) Put(ctx context.Context, bucket, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	const q = `
		INSERT INTO objects (bucket, key, data, size, last_modified)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (bucket, key)
		DO UPDATE SET data = EXCLUDED.data, size = EXCLUDED.size, last_modified = EXCLUDED.last_modified
	`
	if _, err := r.db.ExecContext(ctx, q, bucket, key, data, int64(len(data))); err != nil {
		return fmt.Errorf("postgres put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get fetches the object content.
func (r *ObjectsPostgres) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	const q = `SELECT data FROM objects WHERE bucket = $1 AND key = $2`

	var data []byte
	if err := r.db.QueryRowContext(ctx, q, bucket, key).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("postgres get %s/%s: %w", bucket, key, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres get %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Delete removes the row. It does not return an error if the row does not exist.
func (r *ObjectsPostgres) Delete(ctx context.Context, bucket, key string) error {
	const q = `DELETE FROM objects WHERE bucket = $1 AND key = $2`
	if _, err := r.db.ExecContext(ctx, q, bucket, key); err != nil {
		return fmt.Errorf("postgres delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// prefixPattern turns prefix into a LIKE pattern matching the keys that start with it.
func prefixPattern(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}

// List returns the keys starting with prefix, ordered by key.
// The anchored LIKE is served by the text_pattern_ops index on (bucket, key).
func (r *ObjectsPostgres) List(ctx context.Context, bucket, prefix string) ([]storage.ObjectSummary, error) {
	const q = `
		SELECT key, last_modified
		FROM objects
		WHERE bucket = $1 AND key LIKE $2 ESCAPE '\'
		ORDER BY key
	`
	rows, err := r.db.QueryContext(ctx, q, bucket, prefixPattern(prefix))
	if err != nil {
		return nil, fmt.Errorf("postgres list %s/%s: %w", bucket, prefix, err)
	}
	defer rows.Close()

	items := make([]storage.ObjectSummary, 0)
	for rows.Next() {
		var o storage.ObjectSummary
		if err := rows.Scan(&o.Key, &o.LastModified); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Ping checks the database connection.
func (r *ObjectsPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
