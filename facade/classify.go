package facade

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/types"
)

// classifySQLError wraps a raw database/sql driver error with the sentinel
// the engine classifies against (spec.md §7). Driver error message
// substrings are necessarily dialect-specific; this covers the common
// MSSQL/Postgres/MySQL phrasing for each taxonomy bucket.
func classifySQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(types.ErrConnectionLost, err.Error())
	}
	if errors.Is(err, sql.ErrConnDone) {
		return errors.Wrap(types.ErrConnectionLost, err.Error())
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "duplicate", "unique constraint", "violates unique"):
		return errors.Wrap(types.ErrDuplicateKey, err.Error())
	case containsAny(msg, "deadlock"):
		return errors.Wrap(types.ErrDeadlock, err.Error())
	case containsAny(msg, "permission denied", "access denied", "login failed"):
		return errors.Wrap(types.ErrPermission, err.Error())
	case containsAny(msg, "syntax error", "incorrect syntax"):
		return errors.Wrap(types.ErrSQLSyntax, err.Error())
	case containsAny(msg, "null value", "cannot insert the value null", "column does not allow nulls"):
		return errors.Wrap(types.ErrNullValue, err.Error())
	case containsAny(msg, "string or binary data would be truncated", "value too long", "data too long"):
		return errors.Wrap(types.ErrTruncation, err.Error())
	case containsAny(msg, "conversion failed", "invalid date", "date/time field"):
		return errors.Wrap(types.ErrDateConversion, err.Error())
	case containsAny(msg, "connection", "broken pipe", "i/o timeout", "bad connection", "server closed"):
		return errors.Wrap(types.ErrConnectionLost, err.Error())
	default:
		return err
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
