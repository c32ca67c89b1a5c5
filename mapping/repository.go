package mapping

import "context"

// Repository is the read-only client view over the persisted mapping
// store, component B (spec.md §6). The core never writes a
// Mapping; the only mutation it asks for is the conditional local-counter
// update.
type Repository interface {
	// FindMapping returns the mapping definition for id, or an error
	// wrapping sql.ErrNoRows-like semantics when it does not exist.
	FindMapping(ctx context.Context, id string) (*Mapping, error)

	// UpdateLastConsecutive conditionally persists newValue as the local
	// counter's lastValue, but only if newValue is strictly greater than
	// the value currently stored — callers (the Execution Engine in
	// local mode) rely on this to avoid losing concurrent advances.
	UpdateLastConsecutive(ctx context.Context, mappingID string, newValue int64) error
}
