package facade

import (
	"database/sql"
	"database/sql/driver"
	"strconv"
	"strings"

	"github.com/forbearing/docxfer/types"
)

// scanRows materializes *sql.Rows into a QueryResult, preserving column
// order so the engine can rebuild an INSERT's column list (spec.md §3.4).
func scanRows(rows *sql.Rows) (*QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(cols))
		for i, c := range cols {
			row[c] = normalizeScanned(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// normalizeScanned converts driver-returned []byte (common for TEXT/VARCHAR
// columns on some drivers) to string so downstream code never has to
// special-case it.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// toNamedArgs converts a Row of @name -> value bindings into
// database/sql named arguments.
func toNamedArgs(params Row) []any {
	if len(params) == 0 {
		return nil
	}
	args := make([]any, 0, len(params))
	for name, value := range params {
		args = append(args, sql.Named(name, normalizeBind(value)))
	}
	return args
}

// normalizeBind applies the facade's parameter-typing policy (spec.md
// §4.5): empty string and the literal "NULL" both bind SQL NULL; every
// other value, boolean spellings included, binds unchanged.
func normalizeBind(value any) driver.Value {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if len(v) == 0 || strings.EqualFold(v, "NULL") {
			return nil
		}
		return v
	default:
		return v
	}
}

// normalizeBool parses the documented boolean spellings (spec.md §4.5):
// "true"/"1"/"yes"/"s"/"y" and their negations.
func normalizeBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "s", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

// tableExistsQuery returns the information_schema-style existence query
// for driver.
func tableExistsQuery(driver, table string) (string, Row) {
	switch driver {
	case DriverMySQL, DriverMariaDB:
		return "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = @t", Row{"t": table}
	default: // postgres, mssql all expose information_schema.tables
		return "SELECT 1 FROM information_schema.tables WHERE table_name = @t", Row{"t": table}
	}
}

// columnTypesQuery returns the information_schema query that yields
// column_name/data_type/is_nullable/max_length rows for driver.
func columnTypesQuery(driver, table string) (string, Row) {
	switch driver {
	case DriverMSSQL:
		return `SELECT column_name, data_type, is_nullable,
			ISNULL(character_maximum_length, 0) AS max_length
			FROM information_schema.columns WHERE table_name = @t`, Row{"t": table}
	default:
		return `SELECT column_name, data_type, is_nullable,
			COALESCE(character_maximum_length, 0) AS max_length
			FROM information_schema.columns WHERE table_name = @t`, Row{"t": table}
	}
}
