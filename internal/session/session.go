// Package session owns in-progress research sessions: the search-unit
// tree, the response accumulator, the single streaming slot, and the
// saved-item list.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashby/guidepost/internal/models"
)

// node is one arena entry. Units are stored flat and referenced by id so
// that appending a fragment touches one node instead of rebuilding a tree.
type node struct {
	unit     models.SearchUnit // Children left nil; materialized on demand
	children []string          // newest first
}

// Session is one research session for a destination. All methods are safe
// for concurrent use.
type Session struct {
	mu          sync.Mutex
	id          string
	destination string
	nodes       map[string]*node
	roots       []string // newest first
	saved       []models.SavedItem
	current     string // id of the streaming unit, empty when idle
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates an empty session.
func New(id, destination string) *Session {
	now := time.Now()
	return &Session{
		id:          id,
		destination: destination,
		nodes:       make(map[string]*node),
		createdAt:   now,
		updatedAt:   now,
	}
}

// ID returns the session (draft) id.
func (s *Session) ID() string { return s.id }

// Destination returns the session destination.
func (s *Session) Destination() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destination
}

// SetDestination records the destination if it is not yet set.
func (s *Session) SetDestination(destination string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destination == "" && destination != "" {
		s.destination = destination
		s.updatedAt = time.Now()
	}
}

// NewUnit creates a streaming unit for query and inserts it newest-first.
// A parentID that matches no existing unit falls back to top-level
// insertion. Creating a unit takes the streaming slot: a previous streaming
// unit is finalized with whatever partial response it accumulated.
func (s *Session) NewUnit(query, parentID string) models.SearchUnit {
	s.mu.Lock()
	defer s.mu.Unlock()

	unit := models.SearchUnit{
		ID:          uuid.NewString(),
		Query:       query,
		IsStreaming: true,
		Timestamp:   time.Now(),
	}

	if parentID != "" {
		if parent, ok := s.nodes[parentID]; ok {
			unit.ParentID = parentID
			parent.children = append([]string{unit.ID}, parent.children...)
		} else {
			parentID = ""
		}
	}
	if parentID == "" {
		s.roots = append([]string{unit.ID}, s.roots...)
	}

	s.nodes[unit.ID] = &node{unit: unit}

	// A new stream supersedes the previous one.
	if s.current != "" {
		s.finalizeLocked(s.current)
	}
	s.current = unit.ID
	s.updatedAt = unit.Timestamp
	return unit
}

// Append concatenates fragment onto the unit's response. It reports false
// when the unit is unknown or already finalized, so late fragments after
// termination cannot mutate a frozen response.
func (s *Session) Append(id, fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || !n.unit.IsStreaming {
		return false
	}
	n.unit.Response += fragment
	s.updatedAt = time.Now()
	return true
}

// Finalize clears the unit's streaming flag, leaving the response as-is.
func (s *Session) Finalize(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeLocked(id)
}

func (s *Session) finalizeLocked(id string) {
	if n, ok := s.nodes[id]; ok && n.unit.IsStreaming {
		n.unit.IsStreaming = false
		s.updatedAt = time.Now()
	}
	if s.current == id {
		s.current = ""
	}
}

// CurrentStreaming returns the id of the streaming unit, if any.
func (s *Session) CurrentStreaming() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != ""
}

// Unit returns the materialized subtree rooted at id.
func (s *Session) Unit(id string) (models.SearchUnit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return models.SearchUnit{}, false
	}
	return s.materializeLocked(n), true
}

// Units materializes the whole tree, newest-first at every level.
func (s *Session) Units() []models.SearchUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materializeAllLocked()
}

func (s *Session) materializeAllLocked() []models.SearchUnit {
	out := make([]models.SearchUnit, 0, len(s.roots))
	for _, id := range s.roots {
		out = append(out, s.materializeLocked(s.nodes[id]))
	}
	return out
}

func (s *Session) materializeLocked(n *node) models.SearchUnit {
	unit := n.unit
	for _, childID := range n.children {
		if child, ok := s.nodes[childID]; ok {
			unit.Children = append(unit.Children, s.materializeLocked(child))
		}
	}
	return unit
}

// Remove deletes a top-level unit and its subtree. Nested units are not
// removable by contract.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rootID := range s.roots {
		if rootID != id {
			continue
		}
		s.roots = append(s.roots[:i], s.roots[i+1:]...)
		s.dropSubtreeLocked(id)
		s.updatedAt = time.Now()
		return true
	}
	return false
}

func (s *Session) dropSubtreeLocked(id string) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	for _, childID := range n.children {
		s.dropSubtreeLocked(childID)
	}
	if s.current == id {
		s.current = ""
	}
	delete(s.nodes, id)
}

// AddSavedItem records a curated excerpt.
func (s *Session) AddSavedItem(content, queryContext string) models.SavedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := models.SavedItem{
		ID:           uuid.NewString(),
		Content:      content,
		QueryContext: queryContext,
		Timestamp:    time.Now(),
	}
	s.saved = append(s.saved, item)
	s.updatedAt = item.Timestamp
	return item
}

// RemoveSavedItem deletes one saved item by id.
func (s *Session) RemoveSavedItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.saved {
		if item.ID == id {
			s.saved = append(s.saved[:i], s.saved[i+1:]...)
			s.updatedAt = time.Now()
			return true
		}
	}
	return false
}

// ClearSavedItems removes all saved items.
func (s *Session) ClearSavedItems() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = nil
	s.updatedAt = time.Now()
}

// SavedItems returns the saved items in insertion order.
func (s *Session) SavedItems() []models.SavedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SavedItem, len(s.saved))
	copy(out, s.saved)
	return out
}

// Snapshot returns the persistable draft document for this session.
func (s *Session) Snapshot() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Draft{
		ID:          s.id,
		Destination: s.destination,
		Units:       s.materializeAllLocked(),
		SavedItems:  append([]models.SavedItem(nil), s.saved...),
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}

// Restore rebuilds a session from a persisted draft. Units marked
// streaming in the document are finalized: a restored session has no live
// stream.
func Restore(d models.Draft) *Session {
	s := New(d.ID, d.Destination)
	s.createdAt = d.CreatedAt
	s.updatedAt = d.UpdatedAt
	s.saved = append([]models.SavedItem(nil), d.SavedItems...)
	for _, unit := range d.Units {
		s.restoreUnit(unit, "")
	}
	return s
}

func (s *Session) restoreUnit(unit models.SearchUnit, parentID string) {
	children := unit.Children
	unit.Children = nil
	unit.IsStreaming = false
	unit.ParentID = parentID

	s.nodes[unit.ID] = &node{unit: unit}
	if parentID == "" {
		s.roots = append(s.roots, unit.ID)
	} else {
		parent := s.nodes[parentID]
		parent.children = append(parent.children, unit.ID)
	}
	for _, child := range children {
		s.restoreUnit(child, unit.ID)
	}
}
