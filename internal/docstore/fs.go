// Package docstore is a JSON document store on the local file system,
// keyed by string. It backs draft sessions, the saved guide list, and the
// persona note.
package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Well-known document keys.
const (
	KeySavedLists  = "saved_lists"
	KeyPersona     = "persona"
	DraftKeyPrefix = "draft_"
)

// DocInfo is lightweight metadata for one stored document.
type DocInfo struct {
	Key       string
	UpdatedAt time.Time
}

// Store is the interface for document operations.
type Store interface {
	// Read returns the raw bytes of the document at key.
	Read(key string) ([]byte, error)
	// Write atomically writes data under key.
	Write(key string, data []byte) error
	// Delete removes the document at key.
	Delete(key string) error
	// List returns metadata for every document whose key has the prefix,
	// newest first.
	List(prefix string) ([]DocInfo, error)
}

const docExt = ".json"

// FS implements Store backed by a flat directory of .json files.
type FS struct {
	root string
}

// NewFS creates an FS store rooted at dir. The directory must already
// exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("docstore: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("docstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docstore: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// safePath validates that key is a plain name (no separators, no
// traversal) and returns the absolute file path.
func (f *FS) safePath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("docstore: key is required")
	}
	cleaned := filepath.Clean(key)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("docstore: invalid key: %s", key)
	}
	abs := filepath.Join(f.root, cleaned+docExt)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("docstore: key escapes store root: %s", key)
	}
	return abs, nil
}

// Read returns the raw bytes of a document.
func (f *FS) Read(key string) ([]byte, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("docstore: read %s: %w", key, err)
	}
	return data, nil
}

// Write atomically writes a document: tmp file, fsync, rename. A crash
// mid-write leaves the previous document intact.
func (f *FS) Write(key string, data []byte) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".guidepost-tmp-*")
	if err != nil {
		return fmt.Errorf("docstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("docstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("docstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("docstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("docstore: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a document.
func (f *FS) Delete(key string) error {
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("docstore: delete %s: %w", key, err)
	}
	return nil
}

// List returns metadata for documents whose key has the given prefix,
// newest first.
func (f *FS) List(prefix string) ([]DocInfo, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("docstore: list: %w", err)
	}
	var out []DocInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, docExt) {
			continue
		}
		key := strings.TrimSuffix(name, docExt)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, DocInfo{Key: key, UpdatedAt: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// DraftKey returns the document key for a draft id.
func DraftKey(draftID string) string {
	return DraftKeyPrefix + draftID
}
