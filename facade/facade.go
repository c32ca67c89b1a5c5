// Package facade implements the Connection & Transaction Facade (component
// A, spec.md §4.5): a uniform interface over MSSQL/PostgreSQL/MySQL/
// MariaDB/MongoDB servers, connection pooling keyed by server name, typed
// parameter binding, bounded retries, circuit breaking per server key, and
// query telemetry. It follows forbearing-gst's per-driver Init/New/buildDSN
// shape (database/postgres, database/sqlite) but talks raw database/sql
// instead of GORM, since the engine issues hand-written SQL, not ORM
// queries.
package facade

import (
	"context"
	"database/sql"
	"time"

	"github.com/forbearing/docxfer/types"
)

// Driver names accepted in config.ServerConfig.Driver.
const (
	DriverMSSQL    = "mssql"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMariaDB  = "mariadb"
	DriverMongo    = "mongodb"
)

// Conn is a handle to an acquired server connection. Callers pass it to
// every subsequent Facade call and must ReleaseConnection it on every exit
// path (spec.md §5 "connections are owned by the execution for its
// duration").
type Conn struct {
	ServerKey string
	Driver    string

	sqlDB *sql.DB   // nil when Driver == DriverMongo
	mongo *mongoConn // nil for relational drivers
	tx    *sql.Tx    // non-nil while a transaction is open
}

// Row is an alias of types.Row, the facade's row representation.
type Row = types.Row

// QueryResult is the result of Facade.Query: ordered column names (to
// preserve INSERT column order) plus the matched rows.
type QueryResult struct {
	Columns []string
	Rows    []Row
}

// Facade is the Connection & Transaction Facade's operation set, spec.md
// §4.5.
type Facade interface {
	GetConnection(ctx context.Context, serverKey string) (*Conn, error)
	ReleaseConnection(conn *Conn) error

	Query(ctx context.Context, conn *Conn, query string, params Row) (*QueryResult, error)
	Exec(ctx context.Context, conn *Conn, query string, params Row) (rowsAffected int64, err error)

	Begin(ctx context.Context, conn *Conn) error
	Commit(conn *Conn) error
	Rollback(conn *Conn) error

	TableExists(ctx context.Context, conn *Conn, table string) (bool, error)
	GetColumnTypes(ctx context.Context, conn *Conn, table string) (map[string]types.ColumnType, error)
	ClearTableData(ctx context.Context, conn *Conn, table string) error
}

// QueryTelemetry is the per-server counters spec.md §4.5 requires: "every
// query increments a per-server counter and updates a running average
// latency".
type QueryTelemetry struct {
	Count        int64
	TotalLatency time.Duration
}

func (t QueryTelemetry) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.TotalLatency / time.Duration(t.Count)
}
