package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docstore/internal/logger"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_objects",
		SQL: `CREATE TABLE IF NOT EXISTS objects (
  bucket        TEXT        NOT NULL,
  key           TEXT        NOT NULL,
  data          BYTEA       NOT NULL,
  size          BIGINT      NOT NULL CHECK (size >= 0),
  last_modified TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (bucket, key)
);`,
	},
	{
		Name: "create_index_objects_key_pattern",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_objects_bucket_key_pattern ON objects (bucket, key text_pattern_ops);`,
	},
}

// EnsureMigrated creates the objects table and its indexes unless the table already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, dbHost string) error {
	start := time.Now()
	l := logger.Component("database").With().Str("db_host", dbHost).Logger()

	l.Info().Str("event", "db_migration_check").Str("status", "starting").Msg("")

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass('public.objects') IS NOT NULL").Scan(&exists); err != nil {
		l.Error().
			Str("event", "db_migration_failed").
			Str("status", "error").
			Err(err).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("failed to check sentinel table")
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		l.Info().
			Str("event", "db_migration_skip").
			Str("status", "success").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	l.Info().Str("event", "db_migration_start").Str("status", "in_progress").Msg("")

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			l.Error().
				Str("event", "db_migration_failed").
				Str("status", "error").
				Str("migration_step", step.Name).
				Err(err).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Msg("")
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		l.Info().
			Str("event", "db_migration_step").
			Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Msg("")
	}

	l.Info().
		Str("event", "db_migration_success").
		Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("")

	return nil
}
