// Package store persists review history. The default backend is a
// single JSON file holding the whole history; an optional SQLite backend
// serves deployments with concurrent writers (serve mode).
package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/cr/internal/models"
)

// Store is the persistence interface for review history.
//
// Load never fails on a missing or unreadable history: it returns an
// empty slice instead, so the dashboard stays available.
type Store interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
	Load(ctx context.Context) ([]models.HistoryEntry, error)
	Clear(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string // "file" (default) or "sqlite"
	Path   string
}

// New creates a store by driver name.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "file", "json":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// stamp fills in the entry ID and UTC timestamp if the caller left them
// zero. Both backends call it on Append.
func stamp(entry *models.HistoryEntry) {
	if entry.ID == "" {
		entry.ID = newULID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
}
