//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS sections_fts USING fts5(
			guide_id UNINDEXED,
			position UNINDEXED,
			title,
			heading,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, guideID string, position int, title, heading, body string) error {
	_, _ = tx.Exec(`DELETE FROM sections_fts WHERE guide_id = ? AND position = ?`, guideID, position)
	_, err := tx.Exec(`INSERT INTO sections_fts (guide_id, position, title, heading, body) VALUES (?, ?, ?, ?, ?)`,
		guideID, position, title, heading, body)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, guideID string) {
	_, _ = tx.Exec(`DELETE FROM sections_fts WHERE guide_id = ?`, guideID)
}

// Search performs an FTS5 full-text search over guide sections and returns
// matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT guide_id,
		       title,
		       heading,
		       snippet(sections_fts, 4, '<b>', '</b>', '...', 64)
		FROM sections_fts
		WHERE sections_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.GuideID, &r.Title, &r.Heading, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
