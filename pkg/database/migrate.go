package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS class_generations (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		version       INTEGER NOT NULL,
		seed          BIGINT NOT NULL,
		student_count INTEGER NOT NULL DEFAULT 0,
		class_count   INTEGER NOT NULL DEFAULT 0,
		meta          JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_by    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (name, version)
	)`,
	`CREATE TABLE IF NOT EXISTS class_generation_placements (
		id               TEXT PRIMARY KEY,
		generation_id    TEXT NOT NULL REFERENCES class_generations(id) ON DELETE CASCADE,
		group_name       TEXT NOT NULL,
		group_order      INTEGER NOT NULL,
		class_index      INTEGER NOT NULL,
		position         INTEGER NOT NULL,
		student_id       TEXT NOT NULL,
		first_name       TEXT NOT NULL DEFAULT '',
		surname          TEXT NOT NULL DEFAULT '',
		full_name        TEXT NOT NULL,
		prior_class      TEXT NOT NULL DEFAULT '',
		gender           TEXT NOT NULL DEFAULT '',
		academic         TEXT NOT NULL DEFAULT '',
		behaviour        TEXT NOT NULL DEFAULT '',
		pair_request     TEXT NOT NULL DEFAULT '',
		separate_request TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_class_generation_placements_generation
		ON class_generation_placements (generation_id, group_order, class_index, position)`,
}

// Migrate creates the tables used for saved generations. Every statement is
// idempotent so it runs on each start.
func Migrate(ctx context.Context, db sqlx.ExecerContext) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
