package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name: "create beaver_transcripts",
		sql: `CREATE TABLE IF NOT EXISTS beaver_transcripts (
			id              uuid PRIMARY KEY,
			filename        text NOT NULL,
			mode            text NOT NULL,
			provider        text NOT NULL,
			model           text NOT NULL DEFAULT '',
			original_text   text NOT NULL,
			beaver_text     text NOT NULL,
			trimmed         boolean NOT NULL DEFAULT false,
			audio_seconds   double precision NOT NULL DEFAULT 0,
			audio_bytes     bigint NOT NULL DEFAULT 0,
			duration_ms     int NOT NULL DEFAULT 0,
			source          text NOT NULL DEFAULT 'upload',
			created_at      timestamptz NOT NULL DEFAULT now()
		)`,
		check: `SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'beaver_transcripts')`,
	},
	{
		name:  "add beaver_transcripts created_at index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_beaver_transcripts_created ON beaver_transcripts (created_at DESC)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_beaver_transcripts_created')`,
	},
}

// Migrate runs all pending schema migrations.
// For each migration, it first checks whether the change is already present.
// If not, it attempts to apply it. A failed apply is returned as a
// *MigrationError carrying the SQL still outstanding.
func (db *DB) Migrate(ctx context.Context) error {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := db.Pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		return nil
	}

	applied := 0
	for _, m := range pending {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return &MigrationError{
				failed:  m,
				pending: pending[applied:],
				err:     err,
			}
		}
		db.log.Info().Str("migration", m.name).Msg("schema migration applied")
		applied++
	}
	db.log.Info().Int("applied", applied).Msg("schema migrations complete")
	return nil
}

// MigrationError is returned when a migration fails.
// It includes the SQL needed to apply all remaining migrations manually.
type MigrationError struct {
	failed  migration
	pending []migration
	err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "migration %q failed: %v\n\n", e.failed.name, e.err)
	b.WriteString("Run the following SQL as a database superuser to fix this:\n\n")
	for _, m := range e.pending {
		fmt.Fprintf(&b, "  %s;\n", m.sql)
	}
	b.WriteString("\nThen restart beaverscribe.")
	return b.String()
}

func (e *MigrationError) Unwrap() error {
	return e.err
}
