package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/ashby/guidepost/internal/apperr"
	"github.com/ashby/guidepost/internal/docstore"
	"github.com/ashby/guidepost/internal/models"
)

// Manager owns the live sessions and their persisted draft documents.
// A session is loaded from its draft document on first access and kept
// in memory after that.
type Manager struct {
	mu       sync.Mutex
	store    docstore.Store
	logger   *slog.Logger
	sessions map[string]*Session
}

// NewManager creates a Manager backed by store.
func NewManager(store docstore.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Session returns the live session for id, loading it from its draft
// document if one exists, or creating a fresh one otherwise. A non-empty
// destination updates the session's destination.
func (m *Manager) Session(id, destination string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		if destination != "" {
			s.SetDestination(destination)
		}
		return s, nil
	}

	s, err := m.loadLocked(id)
	if err != nil {
		if !isNotFound(err) {
			return nil, err
		}
		s = New(id, destination)
	} else if destination != "" {
		s.SetDestination(destination)
	}
	m.sessions[id] = s
	return s, nil
}

// Get returns the live session for id, loading it from disk if needed.
// Returns apperr.ErrNotFound when neither exists.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s, err := m.loadLocked(id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	m.sessions[id] = s
	return s, nil
}

// Persist writes the session's snapshot to its draft document.
func (m *Manager) Persist(s *Session) error {
	snap := s.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal draft: %w", err)
	}
	if err := m.store.Write(docstore.DraftKey(s.ID()), data); err != nil {
		return err
	}
	m.logger.Debug("session: persisted", slog.String("id", s.ID()))
	return nil
}

// List returns every persisted draft, newest first.
func (m *Manager) List() ([]models.Draft, error) {
	docs, err := m.store.List(docstore.DraftKeyPrefix)
	if err != nil {
		return nil, err
	}
	drafts := make([]models.Draft, 0, len(docs))
	for _, d := range docs {
		data, readErr := m.store.Read(d.Key)
		if readErr != nil {
			m.logger.Warn("session: read draft failed",
				slog.String("key", d.Key),
				slog.String("error", readErr.Error()))
			continue
		}
		var draft models.Draft
		if umErr := json.Unmarshal(data, &draft); umErr != nil {
			m.logger.Warn("session: bad draft document",
				slog.String("key", d.Key),
				slog.String("error", umErr.Error()))
			continue
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

// Delete removes the live session and its draft document.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, live := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	err := m.store.Delete(docstore.DraftKey(id))
	if err != nil && isNotFound(err) {
		if !live {
			return apperr.ErrNotFound
		}
		return nil
	}
	return err
}

// Reload replaces the in-memory session with the on-disk draft. Called
// from the watcher when a draft document changes under us. A missing or
// unreadable document evicts the session.
func (m *Manager) Reload(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked(id)
	if err != nil {
		delete(m.sessions, id)
		if !isNotFound(err) {
			m.logger.Warn("session: reload failed",
				slog.String("id", id),
				slog.String("error", err.Error()))
		}
		return
	}
	m.sessions[id] = s
	m.logger.Debug("session: reloaded", slog.String("id", id))
}

// Evict drops the in-memory session without touching disk.
func (m *Manager) Evict(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) loadLocked(id string) (*Session, error) {
	data, err := m.store.Read(docstore.DraftKey(id))
	if err != nil {
		return nil, err
	}
	var draft models.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("session: bad draft document %s: %w", id, err)
	}
	return Restore(draft), nil
}

// isNotFound reports whether err wraps a missing-file error from the
// document store.
func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
