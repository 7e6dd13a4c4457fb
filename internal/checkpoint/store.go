package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// #region errors

// ErrNotFound is returned by Load and Delete for unknown or expired ids.
var ErrNotFound = errors.New("checkpoint not found")

// #endregion errors

// #region store-interface

// Store is the backend-agnostic checkpoint contract. Save is atomic from the
// caller's view: fully persisted or an error, never partially written.
// Callers select a backend by configuration, never by inspecting its type.
type Store interface {
	// Save persists the checkpoint and returns its id, assigning one if
	// empty. ttl <= 0 means no expiry.
	Save(ctx context.Context, c HybridCheckpoint, ttl time.Duration) (string, error)
	// Load returns the checkpoint or ErrNotFound.
	Load(ctx context.Context, id string) (HybridCheckpoint, error)
	// Delete removes a checkpoint, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// ListBySession returns up to limit checkpoints, most recent first.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]HybridCheckpoint, error)
	Close() error
}

// #endregion store-interface

// #region open

// Options selects and configures a backend.
type Options struct {
	Backend string // "memory" | "sqlite"
	Path    string // sqlite file path
}

// Open constructs the configured backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", opts.Backend)
	}
}

// #endregion open
