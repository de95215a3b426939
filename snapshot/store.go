package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/turnflow/config"
)

// Common errors
var (
	ErrNotFound     = errors.New("snapshot not found")
	ErrStoreClosed  = errors.New("snapshot store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is the persistence interface for snapshots. Implementations must be
// safe for concurrent use.
type Store interface {
	// Save persists a sealed snapshot (create or overwrite).
	Save(ctx context.Context, snap *Snapshot) error

	// Load retrieves a snapshot by ID.
	Load(ctx context.Context, id string) (*Snapshot, error)

	// Delete removes a snapshot from the store.
	Delete(ctx context.Context, id string) error

	// List retrieves all snapshots for a conversation, newest first.
	List(ctx context.Context, conversationID string) ([]*Snapshot, error)

	// Cleanup removes snapshots expired at the given instant and returns
	// how many were removed.
	Cleanup(ctx context.Context, now time.Time) (int, error)

	// Close closes the store and releases resources.
	Close() error

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error
}

// NewStore creates a snapshot store for the configured backend.
func NewStore(cfg config.SnapshotConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		return NewRedisStore(cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown snapshot store type: %q", cfg.Store)
	}
}
