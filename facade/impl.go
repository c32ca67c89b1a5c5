package facade

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/logger"
	"github.com/forbearing/docxfer/metrics"
	"github.com/forbearing/docxfer/types"
	"github.com/sony/gobreaker"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
)

// facade is the concrete Facade implementation. Connections are pooled per
// server key; a circuit breaker per server key trips on repeated transient
// failures (spec.md §4.5 retry policy), and the column-type cache is
// process-local and read-mostly (spec.md §5).
type facade struct {
	servers func() map[string]config.ServerConfig

	poolMu sync.Mutex
	pools  map[string]*sql.DB
	mongos map[string]*mongoConn

	breakers map[string]*gobreaker.CircuitBreaker[any]

	columnTypesMu sync.RWMutex
	columnTypes   map[string]map[string]types.ColumnType // "server/table" -> column -> type

	telemetryMu sync.Mutex
	telemetry   map[string]QueryTelemetry

	retries int
	backoff time.Duration
}

var _ Facade = (*facade)(nil)

// New builds a Facade. servers resolves the named ServerConfigs (typically
// config.App.Servers); retries/backoff follow spec.md §4.1 step 2's
// "bounded retries (3, exponential backoff 1/2/4s)".
func New(servers map[string]config.ServerConfig, retries int, backoff time.Duration) Facade {
	if retries <= 0 {
		retries = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &facade{
		servers:     func() map[string]config.ServerConfig { return servers },
		pools:       map[string]*sql.DB{},
		mongos:      map[string]*mongoConn{},
		breakers:    map[string]*gobreaker.CircuitBreaker[any]{},
		columnTypes: map[string]map[string]types.ColumnType{},
		telemetry:   map[string]QueryTelemetry{},
		retries:     retries,
		backoff:     backoff,
	}
}

func (f *facade) breaker(serverKey string) *gobreaker.CircuitBreaker[any] {
	f.poolMu.Lock()
	defer f.poolMu.Unlock()
	if b, ok := f.breakers[serverKey]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        serverKey,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Facade.Warnw("circuit breaker state change", "server", name, "from", from.String(), "to", to.String())
			metrics.FacadeCircuitState.WithLabelValues(name).Set(float64(to))
		},
	})
	f.breakers[serverKey] = b
	return b
}

func (f *facade) GetConnection(ctx context.Context, serverKey string) (*Conn, error) {
	cfg, ok := f.servers()[serverKey]
	if !ok {
		return nil, errors.Newf("facade: unknown server key %q", serverKey)
	}

	var conn *Conn
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff * time.Duration(1<<(attempt-1))):
			}
		}
		_, err := f.breaker(serverKey).Execute(func() (any, error) {
			c, err := f.dial(ctx, serverKey, cfg)
			if err != nil {
				return nil, err
			}
			conn = c
			return nil, nil
		})
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logger.Facade.Warnw("connection attempt failed", "server", serverKey, "attempt", attempt+1, "error", err)
	}
	return nil, errors.Wrapf(lastErr, "facade: failed to connect to %q after %d attempts", serverKey, f.retries+1)
}

func (f *facade) dial(ctx context.Context, serverKey string, cfg config.ServerConfig) (*Conn, error) {
	if cfg.Driver == DriverMongo {
		f.poolMu.Lock()
		m, ok := f.mongos[serverKey]
		f.poolMu.Unlock()
		if ok {
			return &Conn{ServerKey: serverKey, Driver: cfg.Driver, mongo: m}, nil
		}
		m, err := dialMongo(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap(types.ErrConnectionLost, err.Error())
		}
		f.poolMu.Lock()
		f.mongos[serverKey] = m
		f.poolMu.Unlock()
		return &Conn{ServerKey: serverKey, Driver: cfg.Driver, mongo: m}, nil
	}

	f.poolMu.Lock()
	db, ok := f.pools[serverKey]
	f.poolMu.Unlock()
	if !ok {
		var err error
		db, err = sql.Open(sqlDriverName(cfg.Driver), buildDSN(cfg.Driver, cfg))
		if err != nil {
			return nil, errors.Wrap(types.ErrConnectionLost, err.Error())
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			return nil, errors.Wrap(types.ErrConnectionLost, err.Error())
		}
		f.poolMu.Lock()
		f.pools[serverKey] = db
		f.poolMu.Unlock()
		logger.Facade.Infow("connected to server", "server", serverKey, "driver", cfg.Driver)
	}
	return &Conn{ServerKey: serverKey, Driver: cfg.Driver, sqlDB: db}, nil
}

func (f *facade) ReleaseConnection(conn *Conn) error {
	// Connections are pooled per server key and returned to the pool, not
	// closed, on release (spec.md §5: owned for the execution's duration).
	// A leftover open transaction on release is an engine bug; roll it back
	// defensively so the pooled connection isn't left dirty.
	if conn != nil && conn.tx != nil {
		_ = conn.tx.Rollback()
		conn.tx = nil
	}
	return nil
}

func (f *facade) Begin(ctx context.Context, conn *Conn) error {
	if conn.sqlDB == nil {
		return errors.New("facade: transactions are not supported on this dialect")
	}
	tx, err := conn.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "facade: begin failed")
	}
	conn.tx = tx
	return nil
}

func (f *facade) Commit(conn *Conn) error {
	if conn.tx == nil {
		return nil
	}
	err := conn.tx.Commit()
	conn.tx = nil
	return errors.Wrap(err, "facade: commit failed")
}

func (f *facade) Rollback(conn *Conn) error {
	if conn.tx == nil {
		return nil
	}
	err := conn.tx.Rollback()
	conn.tx = nil
	return errors.Wrap(err, "facade: rollback failed")
}

func (f *facade) recordTelemetry(serverKey string, start time.Time, outcome string) {
	metrics.FacadeQueriesTotal.WithLabelValues(serverKey, outcome).Inc()
	elapsed := time.Since(start)
	metrics.FacadeQueryLatencySeconds.WithLabelValues(serverKey).Observe(elapsed.Seconds())

	f.telemetryMu.Lock()
	t := f.telemetry[serverKey]
	t.Count++
	t.TotalLatency += elapsed
	f.telemetry[serverKey] = t
	f.telemetryMu.Unlock()
}

// Telemetry returns the running query count/average latency observed for
// serverKey, the facade-internal counterpart to the prometheus collectors
// (spec.md §4.5 "every query increments a per-server counter and updates a
// running average latency").
func (f *facade) Telemetry(serverKey string) QueryTelemetry {
	f.telemetryMu.Lock()
	defer f.telemetryMu.Unlock()
	return f.telemetry[serverKey]
}

func (f *facade) Query(ctx context.Context, conn *Conn, query string, params Row) (*QueryResult, error) {
	start := time.Now()
	result, err := f.queryOnce(ctx, conn, query, params)
	if err != nil && isTransient(err) {
		logger.Facade.Warnw("transient query error, retrying once on a fresh connection", "server", conn.ServerKey, "error", err)
		if reconnErr := f.reconnect(ctx, conn); reconnErr == nil {
			result, err = f.queryOnce(ctx, conn, query, params)
		}
	}
	f.recordTelemetry(conn.ServerKey, start, outcomeOf(err))
	return result, err
}

func (f *facade) queryOnce(ctx context.Context, conn *Conn, query string, params Row) (*QueryResult, error) {
	if conn.mongo != nil {
		return conn.mongo.query(ctx, query, params)
	}
	query = translateDialect(conn.Driver, query)
	rows, err := f.rawQuery(ctx, conn, query, params)
	if err != nil {
		return nil, classifySQLError(err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (f *facade) Exec(ctx context.Context, conn *Conn, query string, params Row) (int64, error) {
	start := time.Now()
	n, err := f.execOnce(ctx, conn, query, params)
	if err != nil && isTransient(err) {
		logger.Facade.Warnw("transient exec error, retrying once on a fresh connection", "server", conn.ServerKey, "error", err)
		if reconnErr := f.reconnect(ctx, conn); reconnErr == nil {
			n, err = f.execOnce(ctx, conn, query, params)
		}
	}
	f.recordTelemetry(conn.ServerKey, start, outcomeOf(err))
	return n, err
}

func (f *facade) execOnce(ctx context.Context, conn *Conn, query string, params Row) (int64, error) {
	if conn.mongo != nil {
		return conn.mongo.exec(ctx, query, params)
	}
	namedParams := toNamedArgs(params)
	var res sql.Result
	var err error
	if conn.tx != nil {
		res, err = conn.tx.ExecContext(ctx, query, namedParams...)
	} else {
		res, err = conn.sqlDB.ExecContext(ctx, query, namedParams...)
	}
	if err != nil {
		return 0, classifySQLError(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (f *facade) rawQuery(ctx context.Context, conn *Conn, query string, params Row) (*sql.Rows, error) {
	namedParams := toNamedArgs(params)
	if conn.tx != nil {
		return conn.tx.QueryContext(ctx, query, namedParams...)
	}
	return conn.sqlDB.QueryContext(ctx, query, namedParams...)
}

// reconnect replaces conn's underlying pooled connection from the pool
// (spec.md §4.5 "the underlying connection is replaced from the pool").
func (f *facade) reconnect(ctx context.Context, conn *Conn) error {
	if conn.sqlDB == nil {
		return errors.New("facade: nothing to reconnect for this dialect")
	}
	return conn.sqlDB.PingContext(ctx)
}

func (f *facade) TableExists(ctx context.Context, conn *Conn, table string) (bool, error) {
	if conn.mongo != nil {
		return conn.mongo.tableExists(ctx, table)
	}
	query, params := tableExistsQuery(conn.Driver, table)
	result, err := f.Query(ctx, conn, query, params)
	if err != nil {
		return false, err
	}
	return len(result.Rows) > 0, nil
}

func (f *facade) GetColumnTypes(ctx context.Context, conn *Conn, table string) (map[string]types.ColumnType, error) {
	cacheKey := conn.ServerKey + "/" + table
	f.columnTypesMu.RLock()
	cached, ok := f.columnTypes[cacheKey]
	f.columnTypesMu.RUnlock()
	if ok {
		return cached, nil
	}

	var result map[string]types.ColumnType
	var err error
	if conn.mongo != nil {
		result, err = conn.mongo.columnTypes(ctx, table)
	} else {
		query, params := columnTypesQuery(conn.Driver, table)
		qr, qerr := f.Query(ctx, conn, query, params)
		if qerr != nil {
			return nil, qerr
		}
		result = map[string]types.ColumnType{}
		for _, row := range qr.Rows {
			name, _ := row["column_name"].(string)
			sqlType, _ := row["data_type"].(string)
			nullable, _ := row["is_nullable"].(string)
			maxLen := toInt(row["max_length"])
			result[strings.ToLower(name)] = types.ColumnType{
				SQLType:   sqlType,
				MaxLength: maxLen,
				Nullable:  strings.EqualFold(nullable, "YES") || strings.EqualFold(nullable, "true"),
			}
		}
	}
	if err != nil {
		return nil, err
	}

	f.columnTypesMu.Lock()
	f.columnTypes[cacheKey] = result
	f.columnTypesMu.Unlock()
	return result, nil
}

func (f *facade) ClearTableData(ctx context.Context, conn *Conn, table string) error {
	_, err := f.Exec(ctx, conn, "DELETE FROM "+table, nil)
	return err
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func isTransient(err error) bool {
	return errors.Is(err, types.ErrConnectionLost)
}
