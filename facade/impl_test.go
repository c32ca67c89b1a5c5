package facade

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/forbearing/docxfer/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockConn(t *testing.T) (*Conn, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return &Conn{ServerKey: "src", Driver: DriverPostgres, sqlDB: db}, mock
}

func TestFacadeQueryScansColumnsInOrder(t *testing.T) {
	conn, mock := newMockConn(t)
	f := New(map[string]config.ServerConfig{}, 3, time.Millisecond).(*facade)

	rows := sqlmock.NewRows([]string{"id", "name"}).AddRow("P1", "widget")
	mock.ExpectQuery("SELECT .* FROM orders").WillReturnRows(rows)

	result, err := f.Query(context.Background(), conn, "SELECT id, name FROM orders WHERE id = @id", Row{"id": "P1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "widget", result.Rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacadeExecReportsRowsAffected(t *testing.T) {
	conn, mock := newMockConn(t)
	f := New(map[string]config.ServerConfig{}, 3, time.Millisecond).(*facade)

	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(1, 1))

	n, err := f.Exec(context.Background(), conn, "INSERT INTO orders (id) VALUES (@id)", Row{"id": "P1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifySQLErrorDuplicateKey(t *testing.T) {
	err := classifySQLError(assertableErr{"duplicate key value violates unique constraint"})
	assert.ErrorContains(t, err, "duplicate")
}

type assertableErr struct{ msg string }

func (e assertableErr) Error() string { return e.msg }

func TestNormalizeBindTreatsEmptyAndNullLiteralAsNil(t *testing.T) {
	assert.Nil(t, normalizeBind(""))
	assert.Nil(t, normalizeBind("NULL"))
	assert.Equal(t, "abc", normalizeBind("abc"))
}

func TestNormalizeBoolSpellings(t *testing.T) {
	for _, s := range []string{"true", "1", "yes", "s", "y"} {
		v, ok := normalizeBool(s)
		assert.True(t, ok)
		assert.True(t, v)
	}
	for _, s := range []string{"false", "0", "no", "n"} {
		v, ok := normalizeBool(s)
		assert.True(t, ok)
		assert.False(t, v)
	}
	_, ok := normalizeBool("maybe")
	assert.False(t, ok)
}
