package store

import (
	"context"

	"github.com/nhle/contacts/internal/cache"
)

// Store persists the contacts cache between runs.
type Store interface {
	// SaveState replaces the persisted cache with s. In-flight operations
	// are not saved.
	SaveState(ctx context.Context, s cache.State) error

	// LoadState returns the persisted cache, or an empty one.
	LoadState(ctx context.Context) (cache.State, error)

	Close() error
}
