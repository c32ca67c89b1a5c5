package consecutive

import (
	"context"
	"time"
)

// Store is the counter store collaborator (spec.md §6 "Counter store"):
// the durable side of every Consecutive document, with compare-and-set
// semantics on CurrentValue so concurrent callers linearise per counter id.
type Store interface {
	// Load returns the named counter, creating it with the given seed
	// values the first time it is requested.
	Load(ctx context.Context, name string, seedStart, seedIncrement int64) (*Consecutive, error)
	// CompareAndSwap atomically replaces the stored counter with next, but
	// only if the stored CurrentValue/version still matches expectCurrent.
	// Returns false (no error) on a lost race so the caller retries.
	CompareAndSwap(ctx context.Context, next *Consecutive, expectCurrent int64) (bool, error)
}

// Lock is the distributed mutual-exclusion primitive backing per-counter
// serialization across process instances (spec.md §4.4 "concurrency
// contract"). The in-process compare-and-swap retry loop already
// linearises calls within one process; Lock extends that guarantee across
// processes sharing the same Store.
type Lock interface {
	// TryLock acquires a lock named key for ttl, returning false if already
	// held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Service is the Consecutive Service's operation set, spec.md §4.4.
type Service interface {
	Allocate(ctx context.Context, name string) (ReservedValue, error)
	Reserve(ctx context.Context, name string, n int, segment, reservedBy string) (*Reservation, error)
	Commit(ctx context.Context, name, reservationID string) error
	Cancel(ctx context.Context, name, reservationID string) error
	Reset(ctx context.Context, name string, value int64, segment string) error
	Metrics(ctx context.Context, name string, window time.Duration) (Metrics, error)

	// SweepExpired flips expired "reserved" entries to "cancelled" across
	// every counter this Service instance knows about. Intended to be
	// driven by a periodic scheduler (e.g. every 30s, spec.md §4.4).
	SweepExpired(ctx context.Context) (int, error)
}

// Metrics is one Metrics() result, spec.md §4.4 "Metrics over a time
// window".
type Metrics struct {
	Increments          int64
	Resets              int64
	ActiveReservations  int64
	ExpiredReservations int64
	CommittedReservations int64
	MinValue            int64
	MaxValue            int64
	PerSegmentCounts    map[string]int64
}
