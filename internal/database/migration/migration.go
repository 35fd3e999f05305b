package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_notes",
		SQL: `CREATE TABLE IF NOT EXISTS notes (
  id            UUID        PRIMARY KEY,
  name          TEXT        NOT NULL,
  content       TEXT        NOT NULL,
  password_hash TEXT        NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at    TIMESTAMPTZ NULL,
  CONSTRAINT notes_name_key UNIQUE (name),
  CONSTRAINT notes_name_not_blank CHECK (btrim(name) <> ''),
  CONSTRAINT notes_content_not_empty CHECK (content <> '')
);`,
	},
	{
		Name: "create_index_notes_expires_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_notes_expires_at ON notes (expires_at) WHERE expires_at IS NOT NULL;`,
	},
}

// EnsureMigrated checks if the 'notes' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log zerolog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With().Str("component", "database").Str("db_host", dbHost).Logger()

	log.Info().Str("event", "db_migration_check").Str("status", "starting").Send()

	var exists bool
	query := "SELECT to_regclass('public.notes') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error().
			Str("event", "db_migration_failed").
			Str("status", "error").
			Str("error_message", fmt.Sprintf("failed to check sentinel table: %v", err)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Send()
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info().
			Str("event", "db_migration_skip").
			Str("status", "success").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	log.Info().Str("event", "db_migration_start").Str("status", "in_progress").Send()

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error().
				Str("event", "db_migration_failed").
				Str("status", "error").
				Str("migration_step", step.Name).
				Str("error_message", err.Error()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Send()
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info().
			Str("event", "db_migration_step").
			Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Send()
	}

	log.Info().
		Str("event", "db_migration_success").
		Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Send()

	return nil
}
