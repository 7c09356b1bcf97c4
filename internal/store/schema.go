// Package store provides the SQLite-backed guide catalog with optional
// FTS5 full-text search over guide sections.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS guides (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	destination       TEXT NOT NULL DEFAULT '',
	destination_slug  TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT 'needs_review',
	quality_score     REAL NOT NULL DEFAULT 0,
	total_word_count  INTEGER NOT NULL DEFAULT 0,
	unique_queries    INTEGER NOT NULL DEFAULT 0,
	content_signature TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_guides_signature ON guides(content_signature);
CREATE INDEX IF NOT EXISTS idx_guides_slug ON guides(destination_slug);
CREATE INDEX IF NOT EXISTS idx_guides_state ON guides(state);

CREATE TABLE IF NOT EXISTS guide_sections (
	guide_id     TEXT NOT NULL,
	position     INTEGER NOT NULL,
	heading      TEXT NOT NULL DEFAULT '',
	query        TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	raw_response TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (guide_id, position),
	FOREIGN KEY (guide_id) REFERENCES guides(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS suggestions (
	slug       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL DEFAULT '[]',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with guide catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
