package tracker

import (
	"context"
	"testing"

	"github.com/forbearing/docxfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndStatus(t *testing.T) {
	trk := New()
	ctx := trk.Register(context.Background(), "exec-1", "mapping-1", 10)
	require.NotNil(t, ctx)

	entry, ok := trk.Status("exec-1")
	require.True(t, ok)
	assert.Equal(t, "mapping-1", entry.MappingID)
	assert.Equal(t, types.StatusRunning, entry.Status)
	assert.Equal(t, 10, entry.Total)
	assert.Equal(t, 1, trk.Len())
}

func TestDeregisterRemovesEntry(t *testing.T) {
	trk := New()
	trk.Register(context.Background(), "exec-1", "mapping-1", 1)
	trk.Deregister("exec-1")

	_, ok := trk.Status("exec-1")
	assert.False(t, ok)
	assert.Equal(t, 0, trk.Len())
}

func TestDeregisterUnknownIsSafe(t *testing.T) {
	trk := New()
	assert.NotPanics(t, func() { trk.Deregister("missing") })
}

func TestCancelFiresDerivedContext(t *testing.T) {
	trk := New()
	ctx := trk.Register(context.Background(), "exec-1", "mapping-1", 1)

	ok := trk.Cancel("exec-1")
	require.True(t, ok)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected derived context to be cancelled")
	}
}

func TestCancelUnknownReturnsFalse(t *testing.T) {
	trk := New()
	assert.False(t, trk.Cancel("missing"))
}

func TestUpdateProgressUpdatesCounters(t *testing.T) {
	trk := New()
	trk.Register(context.Background(), "exec-1", "mapping-1", 10)
	trk.UpdateProgress("exec-1", 3, 1, 0)

	entry, ok := trk.Status("exec-1")
	require.True(t, ok)
	assert.Equal(t, 3, entry.Processed)
	assert.Equal(t, 1, entry.Failed)
}

func TestUpdateProgressUnknownIsNoop(t *testing.T) {
	trk := New()
	assert.NotPanics(t, func() { trk.UpdateProgress("missing", 1, 0, 0) })
}
