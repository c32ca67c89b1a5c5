// Package tracker implements the Task Tracker (component G, spec.md §2/§5):
// an in-process registry of running executions, keyed by execution id, for
// cancellation and status polling. Backed by
// github.com/orcaman/concurrent-map/v2, the teacher's choice for
// "concurrent map keyed by an id" (spec.md §5 "a concurrent map keyed by
// execution id").
package tracker

import (
	"context"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/forbearing/docxfer/logger"
	"github.com/forbearing/docxfer/types"
)

// Entry is one registered execution's live state.
type Entry struct {
	ExecutionID string
	MappingID   string
	Status      types.Status
	StartedAt   time.Time
	Total       int
	Processed   int
	Failed      int
	Skipped     int

	cancel context.CancelFunc
}

// Tracker registers running executions and exposes cancellation/status
// polling over them.
type Tracker struct {
	entries cmap.ConcurrentMap[string, *Entry]
}

// New builds an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: cmap.New[*Entry]()}
}

// Register records a new running execution and returns a context derived
// from parent that Cancel(executionID) will cancel.
func (t *Tracker) Register(parent context.Context, executionID, mappingID string, total int) context.Context {
	ctx, cancel := context.WithCancel(parent)
	t.entries.Set(executionID, &Entry{
		ExecutionID: executionID,
		MappingID:   mappingID,
		Status:      types.StatusRunning,
		StartedAt:   time.Now(),
		Total:       total,
		cancel:      cancel,
	})
	logger.Tracker.Infow("registered execution", "executionId", executionID, "mappingId", mappingID, "total", total)
	return ctx
}

// Deregister removes executionID from the registry. Safe to call even if
// the execution was never registered.
func (t *Tracker) Deregister(executionID string) {
	t.entries.Remove(executionID)
	logger.Tracker.Debugw("deregistered execution", "executionId", executionID)
}

// Cancel fires the cancellation token associated with executionID. Returns
// false if executionID is not currently registered.
func (t *Tracker) Cancel(executionID string) bool {
	e, ok := t.entries.Get(executionID)
	if !ok {
		return false
	}
	e.cancel()
	logger.Tracker.Infow("cancellation requested", "executionId", executionID)
	return true
}

// UpdateProgress updates the in-flight counters for executionID, a no-op if
// it is not registered (e.g. already finished).
func (t *Tracker) UpdateProgress(executionID string, processed, failed, skipped int) {
	t.entries.Upsert(executionID, nil, func(exists bool, cur, _ *Entry) *Entry {
		if !exists {
			return nil
		}
		cur.Processed = processed
		cur.Failed = failed
		cur.Skipped = skipped
		return cur
	})
}

// Status returns a snapshot of executionID's tracked state, or false if it
// is not registered.
func (t *Tracker) Status(executionID string) (Entry, bool) {
	e, ok := t.entries.Get(executionID)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of currently registered executions.
func (t *Tracker) Len() int {
	return t.entries.Count()
}
