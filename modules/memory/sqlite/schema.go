package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flemzord/majlis/internal/memory"
)

const schemaVersion = 2

// schemaStatements create the four memory tables at version 1. Every table
// is keyed by conversation_id; knowledge hashes are unique per conversation.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT    NOT NULL,
		seq             INTEGER NOT NULL,
		role            TEXT    NOT NULL,
		content         TEXT    NOT NULL DEFAULT '',
		created_at      TEXT    NOT NULL,
		PRIMARY KEY (conversation_id, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS summaries (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		text            TEXT NOT NULL,
		created_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_summaries_conversation ON summaries(conversation_id, id)`,

	`CREATE TABLE IF NOT EXISTS lessons (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		text            TEXT NOT NULL,
		outcome         TEXT NOT NULL CHECK (outcome IN ('success', 'failure')),
		created_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_lessons_conversation ON lessons(conversation_id, id)`,

	`CREATE TABLE IF NOT EXISTS knowledge (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		title           TEXT NOT NULL,
		content         TEXT NOT NULL,
		hash            TEXT NOT NULL,
		created_at      TEXT NOT NULL,
		UNIQUE (conversation_id, hash)
	)`,
}

// foldedColumnStatements add the case-folded search columns of version 2.
// SQLite LIKE ignores case for ASCII only, so search runs against
// memory.Fold forms computed at insert time.
var foldedColumnStatements = []string{
	`ALTER TABLE knowledge ADD COLUMN title_folded TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE knowledge ADD COLUMN content_folded TEXT NOT NULL DEFAULT ''`,
}

// migrations lists the upgrade steps in order. Step i brings the schema to
// version i+1.
var migrations = []func(ctx context.Context, db *sql.DB) error{
	func(ctx context.Context, db *sql.DB) error { return execAll(ctx, db, schemaStatements) },
	func(ctx context.Context, db *sql.DB) error {
		if err := execAll(ctx, db, foldedColumnStatements); err != nil {
			return err
		}
		return backfillFolded(ctx, db)
	},
}

// migrate brings the database schema to schemaVersion, recording each
// applied step in schema_version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	for v := current; v < schemaVersion; v++ {
		if err := migrations[v](ctx, db); err != nil {
			return fmt.Errorf("sqlite: migrate to version %d: %w", v+1, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", v+1); err != nil {
			return fmt.Errorf("sqlite: record schema version: %w", err)
		}
	}
	return nil
}

func execAll(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\nstatement: %s", err, stmt)
		}
	}
	return nil
}

// backfillFolded computes the folded columns of documents stored before
// version 2. Rows are read in full first: the pool has one connection.
func backfillFolded(ctx context.Context, db *sql.DB) error {
	type row struct {
		id             int64
		title, content string
	}
	rows, err := db.QueryContext(ctx, "SELECT id, title, content FROM knowledge")
	if err != nil {
		return err
	}
	var pending []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.title, &r.content); err != nil {
			_ = rows.Close()
			return err
		}
		pending = append(pending, r)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range pending {
		if _, err := db.ExecContext(ctx,
			"UPDATE knowledge SET title_folded = ?, content_folded = ? WHERE id = ?",
			memory.Fold(r.title), memory.Fold(r.content), r.id,
		); err != nil {
			return err
		}
	}
	return nil
}
