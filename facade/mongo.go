package facade

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoConn wraps the driver client/database pair for a Mongo-dialect
// server. Mongo has no SQL surface, so the facade only supports three
// statement shapes: parameterised INSERT, DELETE FROM, and the
// single-row equality SELECT TOP 1 1 used for the existence check. Any
// other statement, lookup queries included, returns an error — this is
// the facade's documented dialect translation for a
// document store target, not a general SQL interpreter (spec.md §1
// Non-goals: "no arbitrary user SQL interpretation beyond the
// parameter/lookup contract").
type mongoConn struct {
	client *mongo.Client
	db     *mongo.Database
}

func dialMongo(ctx context.Context, cfg config.ServerConfig) (*mongoConn, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(buildDSN(DriverMongo, cfg)))
	if err != nil {
		return nil, errors.Wrap(err, "facade: mongo connect failed")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "facade: mongo ping failed")
	}
	return &mongoConn{client: client, db: client.Database(cfg.Database)}, nil
}

func (m *mongoConn) close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

var (
	reInsert  = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+([^\s(]+)\s*\(([^)]*)\)\s*VALUES\s*\(([^)]*)\)`)
	reSelect1 = regexp.MustCompile(`(?is)^\s*SELECT\s+TOP\s+1\s+1\s+FROM\s+([^\s]+)\s+WHERE\s+([\w.]+)\s*=\s*@(\w+)`)
	reDelete  = regexp.MustCompile(`(?is)^\s*DELETE\s+FROM\s+([^\s]+)`)
)

func (m *mongoConn) exec(ctx context.Context, query string, params Row) (int64, error) {
	if match := reInsert.FindStringSubmatch(query); match != nil {
		collection, cols, vals := match[1], splitCSV(match[2]), splitCSV(match[3])
		doc := bson.M{}
		for i, col := range cols {
			if i >= len(vals) {
				break
			}
			doc[col] = resolveParamValue(vals[i], params)
		}
		_, err := m.db.Collection(collection).InsertOne(ctx, doc)
		if err != nil {
			return 0, errors.Wrap(err, "facade: mongo insert failed")
		}
		return 1, nil
	}
	if match := reDelete.FindStringSubmatch(query); match != nil {
		res, err := m.db.Collection(match[1]).DeleteMany(ctx, bson.M{})
		if err != nil {
			return 0, errors.Wrap(err, "facade: mongo delete failed")
		}
		return res.DeletedCount, nil
	}
	return 0, errors.Newf("facade: mongo dialect does not support statement: %s", query)
}

func (m *mongoConn) query(ctx context.Context, query string, params Row) (*QueryResult, error) {
	if match := reSelect1.FindStringSubmatch(query); match != nil {
		collection, column, paramName := match[1], match[2], match[3]
		count, err := m.db.Collection(collection).CountDocuments(ctx, bson.M{column: params[paramName]})
		if err != nil {
			return nil, errors.Wrap(err, "facade: mongo count failed")
		}
		if count == 0 {
			return &QueryResult{Columns: []string{"result"}}, nil
		}
		return &QueryResult{Columns: []string{"result"}, Rows: []Row{{"result": int64(1)}}}, nil
	}
	return nil, errors.Newf("facade: mongo dialect does not support statement: %s", query)
}

func (m *mongoConn) tableExists(ctx context.Context, name string) (bool, error) {
	names, err := m.db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, errors.Wrap(err, "facade: mongo list collections failed")
	}
	return len(names) > 0, nil
}

func (m *mongoConn) columnTypes(context.Context, string) (map[string]types.ColumnType, error) {
	// Mongo is schemaless; the facade has no type metadata to cache, so
	// callers fall back to untyped binding for a mongo target.
	return map[string]types.ColumnType{}, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func resolveParamValue(token string, params Row) any {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "@") {
		return params[strings.TrimPrefix(token, "@")]
	}
	return strings.Trim(token, "'")
}
