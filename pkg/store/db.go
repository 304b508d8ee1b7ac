// Package store is the durable log: threads, messages and agents over
// an embedded SQLite database. All writes serialize on a single lane so
// sequence assignment stays trivially monotonic.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"agentbus/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
    id          TEXT PRIMARY KEY,
    topic       TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'discuss',
    prev_status TEXT NOT NULL DEFAULT '',
    summary     TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id          TEXT PRIMARY KEY,
    thread_id   TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL UNIQUE,
    author_id   TEXT NOT NULL DEFAULT '',
    author_name TEXT NOT NULL DEFAULT '',
    role        TEXT NOT NULL,
    content     TEXT NOT NULL,
    mentions    TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_thread_seq ON messages(thread_id, seq);

CREATE TABLE IF NOT EXISTS seq_counter (
    id  INTEGER PRIMARY KEY CHECK (id = 1),
    val INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
    id                 TEXT PRIMARY KEY,
    name               TEXT NOT NULL,
    ide                TEXT NOT NULL DEFAULT '',
    model              TEXT NOT NULL DEFAULT '',
    capabilities       TEXT NOT NULL DEFAULT '',
    token              TEXT NOT NULL,
    last_heartbeat_at  TIMESTAMP NOT NULL,
    last_activity_at   TIMESTAMP NOT NULL,
    last_activity_kind TEXT NOT NULL DEFAULT '',
    registered_at      TIMESTAMP NOT NULL
);
`

// Open opens (creating if needed) the database at path and initializes
// the schema. The schema statements are idempotent.
func Open(ctx context.Context, path string, log *logger.Logger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps SQLite's writer lock uncontended.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := migrateLegacyArchive(ctx, db, log); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSeqCounter(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initSeqCounter seeds the counter from MAX(seq) so restarts never
// reissue a sequence number.
func initSeqCounter(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO seq_counter (id, val)
		VALUES (1, COALESCE((SELECT MAX(seq) FROM messages), 0))`)
	if err != nil {
		return fmt.Errorf("seeding seq counter: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		UPDATE seq_counter
		SET val = (SELECT COALESCE(MAX(seq), 0) FROM messages)
		WHERE id = 1 AND val < (SELECT COALESCE(MAX(seq), 0) FROM messages)`)
	if err != nil {
		return fmt.Errorf("reconciling seq counter: %w", err)
	}
	return nil
}

// migrateLegacyArchive folds a pre-existing is_archived column into the
// status/prev_status pair used by current schemas.
func migrateLegacyArchive(ctx context.Context, db *sql.DB, log *logger.Logger) error {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(threads)`)
	if err != nil {
		return fmt.Errorf("inspecting threads table: %w", err)
	}
	defer rows.Close()

	hasLegacy := false
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("scanning table info: %w", err)
		}
		if name == "is_archived" {
			hasLegacy = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !hasLegacy {
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE threads
		SET prev_status = status, status = 'archived'
		WHERE is_archived = 1 AND status != 'archived'`)
	if err != nil {
		return fmt.Errorf("migrating is_archived column: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 && log != nil {
		log.Info("Migrated legacy archived threads", zap.Int64("count", n))
	}
	return nil
}
