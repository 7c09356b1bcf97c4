//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses a LIKE fallback on guide_sections.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _ int, _, _, _ string) error {
	// Sections are already stored in guide_sections; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search over guide sections (fallback when
// FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT s.guide_id, g.title, s.heading, substr(s.body, 1, 200)
		FROM guide_sections s
		JOIN guides g ON g.id = s.guide_id
		WHERE s.heading LIKE ? OR s.body LIKE ? OR g.title LIKE ?
		ORDER BY s.guide_id, s.position
		LIMIT ?
	`, like, like, like, limit)
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
