package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mruwnik/notes-critic-sub001/internal/repository/postgres"
)

// EnsureSchema creates the application tables and indexes if they do
// not exist. Idempotent; safe to run on every start of the seed tool.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				path TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (user_id, path)
			)`, tables.Notes),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_search_idx
			ON %s USING GIN (%s)`,
			tables.Notes, tables.Notes, postgres.NoteSearchVector),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				model TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				deleted_at TIMESTAMPTZ
			)`, tables.Conversations),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_user_idx
			ON %s (user_id, updated_at DESC)`,
			tables.Conversations, tables.Conversations),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				conversation_id UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
				input JSONB NOT NULL DEFAULT '{}',
				steps JSONB NOT NULL DEFAULT '[]',
				status TEXT NOT NULL,
				error TEXT,
				model TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				completed_at TIMESTAMPTZ
			)`, tables.Turns, tables.Conversations),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_conversation_idx
			ON %s (conversation_id, created_at ASC)`,
			tables.Turns, tables.Turns),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// DropTables removes the application tables. Dev/test only; the seed
// tool refuses to run this against prod.
func DropTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	stmt := fmt.Sprintf(`
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
	`, tables.Turns, tables.Conversations, tables.Notes)

	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
