// Package models defines the domain types for Guidepost.
package models

import "time"

// SearchUnit is one query/response exchange with the research backend.
// Children hold follow-up units (elaborations), newest first, recursively
// of the same shape. This is the wire and persistence representation; the
// session package keeps units in a flat arena and materializes this tree
// on demand.
type SearchUnit struct {
	ID          string       `json:"id"`
	Query       string       `json:"query"`
	Response    string       `json:"response"`
	IsStreaming bool         `json:"isStreaming"`
	Timestamp   time.Time    `json:"timestamp"`
	ParentID    string       `json:"parentId,omitempty"`
	Children    []SearchUnit `json:"children,omitempty"`
}

// SavedItem is a user-curated excerpt with an independent lifecycle:
// created by explicit user action, removable, never mutated otherwise.
type SavedItem struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	QueryContext string    `json:"queryContext"`
	Timestamp    time.Time `json:"timestamp"`
}

// Draft is an in-progress research session persisted for recovery.
type Draft struct {
	ID          string       `json:"id"`
	Destination string       `json:"destination"`
	Units       []SearchUnit `json:"units"`
	SavedItems  []SavedItem  `json:"savedItems"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
