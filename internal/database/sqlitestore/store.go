// Package sqlitestore provides SQLite-backed store implementations.
// It is the alternate moderation backend, selected with MLEM_DB_BACKEND=sqlite.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"

	_ "modernc.org/sqlite"
)

// schema holds the moderation DDL. Applied idempotently on open.
const schema = `
CREATE TABLE IF NOT EXISTS moderation_statuses (
	user_id         TEXT PRIMARY KEY,
	warning_count   INTEGER NOT NULL DEFAULT 0,
	strike_count    INTEGER NOT NULL DEFAULT 0,
	muted           INTEGER NOT NULL DEFAULT 0,
	suspended       INTEGER NOT NULL DEFAULT 0,
	suspended_until TEXT,
	last_warning_at TEXT,
	last_strike_at  TEXT
);

CREATE TABLE IF NOT EXISTS moderation_actions (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	moderator_id      TEXT NOT NULL,
	action_type       TEXT NOT NULL,
	reason            TEXT NOT NULL,
	notes             TEXT NOT NULL DEFAULT '',
	related_report_id TEXT NOT NULL DEFAULT '',
	expires_at        TEXT,
	active            INTEGER NOT NULL DEFAULT 1,
	seen_by_user      INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_moderation_actions_user ON moderation_actions(user_id, created_at);

CREATE TABLE IF NOT EXISTS content_reports (
	id                TEXT PRIMARY KEY,
	reporter_id       TEXT NOT NULL,
	target_content_id TEXT NOT NULL,
	reason            TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	moderator_id      TEXT NOT NULL DEFAULT '',
	moderator_notes   TEXT NOT NULL DEFAULT '',
	action_taken      TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	UNIQUE(reporter_id, target_content_id)
);

CREATE TABLE IF NOT EXISTS user_reports (
	id               TEXT PRIMARY KEY,
	reporter_id      TEXT NOT NULL,
	reported_user_id TEXT NOT NULL,
	reason           TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	moderator_id     TEXT NOT NULL DEFAULT '',
	moderator_notes  TEXT NOT NULL DEFAULT '',
	action_taken     TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	UNIQUE(reporter_id, reported_user_id)
);
`

// Open opens (or creates) a SQLite database at the given path, applies the
// moderation schema, and instruments the connection with OpenTelemetry.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := otelsql.Open("sqlite", path,
		otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent mutations.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
