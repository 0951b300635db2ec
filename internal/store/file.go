package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joescharf/cr/internal/models"
)

// FileStore keeps the whole history as one JSON array and rewrites the
// file on every append. It has no locking: the CLI is a single-process,
// single-user tool, and concurrent writers would race on the
// read-modify-write. Serve mode should use the SQLite backend instead.
type FileStore struct {
	path string
}

// NewFileStore creates a file store. The file is created lazily on the
// first Append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append reads the current history, appends the entry, and rewrites the
// file. A missing or corrupt file counts as an empty history.
func (s *FileStore) Append(ctx context.Context, entry *models.HistoryEntry) error {
	stamp(entry)

	entries, err := s.Load(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, *entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &models.StoreError{Op: "append", Err: err}
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &models.StoreError{Op: "append", Err: err}
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return &models.StoreError{Op: "append", Err: err}
	}
	return nil
}

// Load returns every stored entry in append order. Missing and corrupt
// files both degrade to an empty history, never an error.
func (s *FileStore) Load(ctx context.Context) ([]models.HistoryEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return []models.HistoryEntry{}, nil
	}
	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return []models.HistoryEntry{}, nil
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return entries, nil
}

// Clear deletes the history file. An absent file and an empty history
// read back identically, so removal doubles as truncation.
func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return &models.StoreError{Op: "clear", Err: err}
	}
	return nil
}

// Migrate is a no-op for the file backend.
func (s *FileStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }
