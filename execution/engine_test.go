package execution

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/forbearing/docxfer/consecutive"
	"github.com/forbearing/docxfer/facade"
	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/tracker"
	"github.com/forbearing/docxfer/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFacade is a hand-rolled facade.Facade: the Execution Engine tests
// exercise orchestration (state machine, marking, cancellation), not SQL
// translation, which facade/impl_test.go already covers with go-sqlmock.
type fakeFacade struct {
	headerRows map[string]types.Row // documentId -> header row
	existing   map[string]bool      // documentId -> already present in target
	execCalls  []string
}

func (f *fakeFacade) GetConnection(ctx context.Context, serverKey string) (*facade.Conn, error) {
	return &facade.Conn{ServerKey: serverKey, Driver: facade.DriverPostgres}, nil
}
func (f *fakeFacade) ReleaseConnection(conn *facade.Conn) error { return nil }

func (f *fakeFacade) Query(ctx context.Context, conn *facade.Conn, query string, params facade.Row) (*facade.QueryResult, error) {
	docID, _ := params["documentId"].(string)
	switch {
	case strings.Contains(query, "TOP 1 1"):
		if f.existing[docID] {
			return &facade.QueryResult{Rows: []facade.Row{{"1": 1}}}, nil
		}
		return &facade.QueryResult{}, nil
	default:
		row, ok := f.headerRows[docID]
		if !ok {
			return &facade.QueryResult{}, nil
		}
		return &facade.QueryResult{Columns: []string{"id"}, Rows: []facade.Row{row}}, nil
	}
}

func (f *fakeFacade) Exec(ctx context.Context, conn *facade.Conn, query string, params facade.Row) (int64, error) {
	f.execCalls = append(f.execCalls, query)
	return 1, nil
}

func (f *fakeFacade) Begin(ctx context.Context, conn *facade.Conn) error    { return nil }
func (f *fakeFacade) Commit(conn *facade.Conn) error                       { return nil }
func (f *fakeFacade) Rollback(conn *facade.Conn) error                     { return nil }
func (f *fakeFacade) TableExists(ctx context.Context, conn *facade.Conn, table string) (bool, error) {
	return true, nil
}
func (f *fakeFacade) GetColumnTypes(ctx context.Context, conn *facade.Conn, table string) (map[string]types.ColumnType, error) {
	return map[string]types.ColumnType{"id": {SQLType: "varchar", Nullable: false}}, nil
}
func (f *fakeFacade) ClearTableData(ctx context.Context, conn *facade.Conn, table string) error {
	return nil
}

var _ facade.Facade = (*fakeFacade)(nil)

type fakeRepo struct {
	m           *mapping.Mapping
	lastUpdated int64
	updateCalls int
}

func (r *fakeRepo) FindMapping(ctx context.Context, id string) (*mapping.Mapping, error) {
	return r.m, nil
}
func (r *fakeRepo) UpdateLastConsecutive(ctx context.Context, mappingID string, newValue int64) error {
	r.lastUpdated = newValue
	r.updateCalls++
	return nil
}

var _ mapping.Repository = (*fakeRepo)(nil)

type fakeConsecutiveService struct{ n int64 }

func (s *fakeConsecutiveService) Allocate(ctx context.Context, name string) (consecutive.ReservedValue, error) {
	s.n++
	return consecutive.ReservedValue{Numeric: s.n, Formatted: "V" + string(rune('0'+s.n))}, nil
}
func (s *fakeConsecutiveService) Reserve(ctx context.Context, name string, n int, segment, reservedBy string) (*consecutive.Reservation, error) {
	s.n++
	return &consecutive.Reservation{
		ReservationID: reservedBy,
		Values:        []consecutive.ReservedValue{{Numeric: s.n, Formatted: "V" + string(rune('0'+s.n))}},
	}, nil
}
func (s *fakeConsecutiveService) Commit(ctx context.Context, name, reservationID string) error { return nil }
func (s *fakeConsecutiveService) Cancel(ctx context.Context, name, reservationID string) error { return nil }
func (s *fakeConsecutiveService) Reset(ctx context.Context, name string, value int64, segment string) error {
	return nil
}
func (s *fakeConsecutiveService) Metrics(ctx context.Context, name string, window time.Duration) (consecutive.Metrics, error) {
	return consecutive.Metrics{}, nil
}
func (s *fakeConsecutiveService) SweepExpired(ctx context.Context) (int, error) { return 0, nil }

var _ consecutive.Service = (*fakeConsecutiveService)(nil)

func testMapping() *mapping.Mapping {
	return &mapping.Mapping{
		ID:           "m1",
		SourceServer: "src",
		TargetServer: "tgt",
		TableConfigs: []mapping.TableConfig{
			{
				Name: "Orders", SourceTable: "Orders", TargetTable: "Orders",
				PrimaryKey: "OrderId", TargetPrimaryKey: "OrderId", ExecutionOrder: 1,
				FieldMappings: []mapping.FieldMapping{
					{SourceField: "id", TargetField: "id", IsRequired: true},
				},
			},
		},
		MarkProcessed: mapping.MarkProcessedConfig{
			Field: "Processed", ProcessedValue: "Y", UnprocessedValue: "N", Strategy: types.MarkBatch,
		},
	}
}

func TestProcessDocumentsHappyPath(t *testing.T) {
	f := &fakeFacade{
		headerRows: map[string]types.Row{"D1": {"id": "D1"}, "D2": {"id": "D2"}},
		existing:   map[string]bool{},
	}
	eng, err := New(&fakeRepo{m: testMapping()}, f, &fakeConsecutiveService{}, tracker.New(), nil)
	require.NoError(t, err)

	result, err := eng.ProcessDocuments(context.Background(), "m1", []string{"D1", "D2"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"D1", "D2"}, result.Marking.MarkedIDs)
}

func TestProcessDocumentsSkipsExistingDocument(t *testing.T) {
	f := &fakeFacade{
		headerRows: map[string]types.Row{"D1": {"id": "D1"}},
		existing:   map[string]bool{"D1": true},
	}
	eng, err := New(&fakeRepo{m: testMapping()}, f, &fakeConsecutiveService{}, tracker.New(), nil)
	require.NoError(t, err)

	result, err := eng.ProcessDocuments(context.Background(), "m1", []string{"D1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, types.StatusCompleted, result.Status)
}

func TestProcessDocumentsMissingHeaderFails(t *testing.T) {
	f := &fakeFacade{headerRows: map[string]types.Row{}, existing: map[string]bool{}}
	eng, err := New(&fakeRepo{m: testMapping()}, f, &fakeConsecutiveService{}, tracker.New(), nil)
	require.NoError(t, err)

	result, err := eng.ProcessDocuments(context.Background(), "m1", []string{"D1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, types.StatusFailed, result.Status)
}

func TestProcessDocumentsNoMainTablesErrors(t *testing.T) {
	m := testMapping()
	m.TableConfigs = nil
	f := &fakeFacade{}
	eng, err := New(&fakeRepo{m: m}, f, &fakeConsecutiveService{}, tracker.New(), nil)
	require.NoError(t, err)

	_, err = eng.ProcessDocuments(context.Background(), "m1", []string{"D1"})
	assert.Error(t, err)
}

func TestProcessDocumentsLocalConsecutiveNeverTouchesService(t *testing.T) {
	m := testMapping()
	m.ConsecutiveConfig = mapping.ConsecutiveConfig{
		Enabled: true, UseCentralizedService: false,
		Pattern: "{VALUE:4}", LastValue: 10, Increment: 1,
	}
	f := &fakeFacade{
		headerRows: map[string]types.Row{"D1": {"id": "D1"}},
		existing:   map[string]bool{},
	}
	svc := &fakeConsecutiveService{}
	repo := &fakeRepo{m: m}
	eng, err := New(repo, f, svc, tracker.New(), nil)
	require.NoError(t, err)

	result, err := eng.ProcessDocuments(context.Background(), "m1", []string{"D1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, []string{"0011"}, result.ConsecutivesUsed)
	assert.Equal(t, int64(0), svc.n, "local mode must never call the centralized consecutive service")
	assert.Equal(t, 1, repo.updateCalls)
	assert.EqualValues(t, 11, repo.lastUpdated)
}

func TestProcessDocumentsByTypeBucketsByDocumentType(t *testing.T) {
	m := testMapping()
	m.DocumentTypeRules = []mapping.DocumentTypeRule{
		{Name: "invoice", SourceField: "id", SourceValues: []string{"D1"}},
	}
	f := &fakeFacade{
		headerRows: map[string]types.Row{"D1": {"id": "D1"}, "D2": {"id": "D2"}},
		existing:   map[string]bool{},
	}
	eng, err := New(&fakeRepo{m: m}, f, &fakeConsecutiveService{}, tracker.New(), nil)
	require.NoError(t, err)

	result, err := eng.ProcessDocuments(context.Background(), "m1", []string{"D1", "D2"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ByType["invoice"])
	assert.Equal(t, 1, result.ByType["unknown"])
}
