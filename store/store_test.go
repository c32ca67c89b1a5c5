package store

import (
	"context"
	"testing"
	"time"

	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/execution"
	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := New(config.MetadataStore{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&mappingRecord{}, &executionRecord{}, &consecutiveRecord{}))
	return db
}

func TestMappingRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	m := &mapping.Mapping{
		ID: "M1", Name: "orders", SourceServer: "src", TargetServer: "tgt",
		TableConfigs: []mapping.TableConfig{{Name: "Orders", SourceTable: "Orders", TargetTable: "orders", PrimaryKey: "OrderId", ExecutionOrder: 1}},
	}
	require.NoError(t, repo.Save(ctx, m))

	got, err := repo.FindMapping(ctx, "M1")
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Name)
	require.Len(t, got.TableConfigs, 1)
	assert.Equal(t, "Orders", got.TableConfigs[0].Name)

	require.NoError(t, repo.UpdateLastConsecutive(ctx, "M1", 42))
	got2, err := repo.FindMapping(ctx, "M1")
	require.NoError(t, err)
	assert.EqualValues(t, 42, got2.ConsecutiveConfig.LastValue)
}

func TestMappingRepositoryNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	_, err := repo.FindMapping(context.Background(), "missing")
	assert.Error(t, err)
}

func TestExecutionStoreCreateAndUpdate(t *testing.T) {
	db := newTestDB(t)
	s := NewExecutionStore(db)
	ctx := context.Background()

	rec := &execution.Record{
		ID: "E1", MappingID: "M1", StartTime: time.Now(), Status: types.StatusRunning,
		TotalRecords: 2,
	}
	id, err := s.CreateExecution(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "E1", id)

	rec.Status = types.StatusCompleted
	rec.SuccessfulRecords = 2
	rec.Details = []execution.Detail{{DocumentID: "D1", Success: true, Status: types.StatusCompleted}}
	require.NoError(t, s.UpdateExecution(ctx, "E1", rec))

	var row executionRecord
	require.NoError(t, db.First(&row, "id = ?", "E1").Error)
	assert.Equal(t, string(types.StatusCompleted), row.Status)
	assert.Equal(t, 2, row.SuccessfulRecords)
}

func TestExecutionStoreUpdateFallsBackToCreate(t *testing.T) {
	db := newTestDB(t)
	s := NewExecutionStore(db)
	ctx := context.Background()

	rec := &execution.Record{ID: "E2", MappingID: "M1", Status: types.StatusRunning}
	require.NoError(t, s.UpdateExecution(ctx, "E2", rec))

	var row executionRecord
	require.NoError(t, db.First(&row, "id = ?", "E2").Error)
	assert.Equal(t, "M1", row.MappingID)
}

func TestConsecutiveStoreLoadCreatesOnFirstUse(t *testing.T) {
	db := newTestDB(t)
	s := NewConsecutiveStore(db)
	ctx := context.Background()

	c, err := s.Load(ctx, "ORD", 100, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 100, c.CurrentValue)

	c2, err := s.Load(ctx, "ORD", 0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 100, c2.CurrentValue)
}

func TestConsecutiveStoreCompareAndSwap(t *testing.T) {
	db := newTestDB(t)
	s := NewConsecutiveStore(db)
	ctx := context.Background()

	c, err := s.Load(ctx, "ORD", 0, 1)
	require.NoError(t, err)

	c.CurrentValue = 1
	ok, err := s.CompareAndSwap(ctx, c, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	stale, err := s.Load(ctx, "ORD", 0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stale.CurrentValue)

	stale.CurrentValue = 2
	ok, err = s.CompareAndSwap(ctx, stale, 0)
	require.NoError(t, err)
	assert.False(t, ok, "expectCurrent no longer matches, swap must be rejected")
}
