package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashby/guidepost/internal/apperr"
	"github.com/ashby/guidepost/internal/models"
)

// SearchResult represents one search hit in a guide section.
type SearchResult struct {
	GuideID string `json:"guideId"`
	Title   string `json:"title"`
	Heading string `json:"heading"`
	Snippet string `json:"snippet"`
}

// GuideCatalog defines the interface for guide catalog operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type GuideCatalog interface {
	InsertGuide(g models.Guide) error
	GetGuide(id string) (*models.Guide, error)
	GetBySignature(signature string) (*models.Guide, error)
	ListGuides(limit, offset int, state, slug string) ([]models.Guide, int, error)
	SetGuideState(id string, state models.GuideState) error
	DeleteGuide(id string) error
	UpsertSuggestions(slug string, items []string) error
	GetSuggestions(slug string) ([]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies GuideCatalog at compile time.
var _ GuideCatalog = (*DB)(nil)

// InsertGuide inserts a guide with its sections and FTS entries within a
// transaction. A guide with the same content signature already in the
// catalog yields apperr.ErrDuplicate.
func (db *DB) InsertGuide(g models.Guide) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO guides (id, title, description, destination, destination_slug,
			state, quality_score, total_word_count, unique_queries,
			content_signature, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.Title, g.Description, g.Destination, g.DestinationSlug,
		string(g.State), g.QualityScore, g.TotalWordCount, g.UniqueQueries,
		g.ContentSignature, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperr.ErrDuplicate
		}
		return fmt.Errorf("store: insert guide: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO guide_sections (guide_id, position, heading, query, body, raw_response)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare section insert: %w", err)
	}
	defer stmt.Close()

	for i, sec := range g.Sections {
		if _, err := stmt.Exec(g.ID, i, sec.Heading, sec.Query, sec.Body, sec.RawResponse); err != nil {
			return fmt.Errorf("store: insert section: %w", err)
		}
		if err := ftsUpsert(tx, g.ID, i, g.Title, sec.Heading, sec.Body); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetGuide returns a guide with its sections, or apperr.ErrNotFound.
func (db *DB) GetGuide(id string) (*models.Guide, error) {
	g, err := db.scanGuide(db.conn.QueryRow(guideSelectSQL+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := db.attachSections(g); err != nil {
		return nil, err
	}
	return g, nil
}

// GetBySignature returns the guide with the given content signature, or
// apperr.ErrNotFound.
func (db *DB) GetBySignature(signature string) (*models.Guide, error) {
	g, err := db.scanGuide(db.conn.QueryRow(guideSelectSQL+` WHERE content_signature = ?`, signature))
	if err != nil {
		return nil, err
	}
	if err := db.attachSections(g); err != nil {
		return nil, err
	}
	return g, nil
}

const guideSelectSQL = `
	SELECT id, title, description, destination, destination_slug,
	       state, quality_score, total_word_count, unique_queries,
	       content_signature, created_at, updated_at
	FROM guides`

func (db *DB) scanGuide(row *sql.Row) (*models.Guide, error) {
	var g models.Guide
	var state string
	err := row.Scan(&g.ID, &g.Title, &g.Description, &g.Destination,
		&g.DestinationSlug, &state, &g.QualityScore, &g.TotalWordCount,
		&g.UniqueQueries, &g.ContentSignature, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan guide: %w", err)
	}
	g.State = models.GuideState(state)
	return &g, nil
}

func (db *DB) attachSections(g *models.Guide) error {
	rows, err := db.conn.Query(`
		SELECT heading, query, body, raw_response
		FROM guide_sections
		WHERE guide_id = ?
		ORDER BY position
	`, g.ID)
	if err != nil {
		return fmt.Errorf("store: load sections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sec models.GuideSection
		if err := rows.Scan(&sec.Heading, &sec.Query, &sec.Body, &sec.RawResponse); err != nil {
			return err
		}
		g.Sections = append(g.Sections, sec)
	}
	return rows.Err()
}

// ListGuides returns guides newest first, optionally filtered by state
// and destination slug, without their sections. The second return value
// is the total count before limit/offset.
func (db *DB) ListGuides(limit, offset int, state, slug string) ([]models.Guide, int, error) {
	if limit <= 0 {
		limit = 50
	}

	where := " WHERE 1=1"
	args := []any{}
	if state != "" {
		where += " AND state = ?"
		args = append(args, state)
	}
	if slug != "" {
		where += " AND destination_slug = ?"
		args = append(args, slug)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM guides`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count guides: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.conn.Query(guideSelectSQL+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list guides: %w", err)
	}
	defer rows.Close()

	var out []models.Guide
	for rows.Next() {
		var g models.Guide
		var st string
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &g.Destination,
			&g.DestinationSlug, &st, &g.QualityScore, &g.TotalWordCount,
			&g.UniqueQueries, &g.ContentSignature, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, 0, err
		}
		g.State = models.GuideState(st)
		out = append(out, g)
	}
	return out, total, rows.Err()
}

// SetGuideState moves a guide to a new lifecycle state.
func (db *DB) SetGuideState(id string, state models.GuideState) error {
	res, err := db.conn.Exec(`
		UPDATE guides SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(state), id)
	if err != nil {
		return fmt.Errorf("store: set state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteGuide removes a guide, its sections, and its FTS entries.
func (db *DB) DeleteGuide(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM guide_sections WHERE guide_id = ?`, id)
	res, err := tx.Exec(`DELETE FROM guides WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete guide: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return tx.Commit()
}

// UpsertSuggestions replaces the cached suggestion list for a destination
// slug.
func (db *DB) UpsertSuggestions(slug string, items []string) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("store: marshal suggestions: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO suggestions (slug, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(slug) DO UPDATE SET
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`, slug, string(payload))
	if err != nil {
		return fmt.Errorf("store: upsert suggestions: %w", err)
	}
	return nil
}

// GetSuggestions returns the cached suggestion list for a destination
// slug, or apperr.ErrNotFound when none is cached.
func (db *DB) GetSuggestions(slug string) ([]string, error) {
	var payload string
	err := db.conn.QueryRow(`SELECT payload FROM suggestions WHERE slug = ?`, slug).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get suggestions: %w", err)
	}
	var items []string
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("store: bad suggestions payload: %w", err)
	}
	return items, nil
}
