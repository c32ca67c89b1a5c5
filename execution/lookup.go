package execution

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/evaluator"
	"github.com/forbearing/docxfer/facade"
	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
)

// newLookupRunner adapts the facade to the evaluator's lookup-from-target
// protocol (spec.md §4.2 "Lookup-from-target protocol (L)").
func newLookupRunner(ctx context.Context, f facade.Facade, conn *facade.Conn) evaluator.LookupRunner {
	return func(fm mapping.FieldMapping, sourceRow types.Row) (any, bool, error) {
		params := types.Row{}
		for _, lp := range fm.LookupParams {
			v, ok := sourceRow[lp.SourceField]
			if !ok || v == nil {
				return nil, false, errors.Newf("lookup: missing required parameter %q (from source field %q)", lp.ParamName, lp.SourceField)
			}
			params[lp.ParamName] = v
		}

		query := fm.LookupQuery
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
			query = "SELECT " + query + " AS result"
		}

		result, err := f.Query(ctx, conn, query, params)
		if err != nil {
			return nil, false, errors.Wrapf(err, "lookup: query failed for field %q", fm.TargetField)
		}
		if len(result.Rows) == 0 {
			return nil, false, nil
		}

		row := result.Rows[0]
		if v, ok := row["result"]; ok {
			return v, true, nil
		}
		if v, ok := row[fm.TargetField]; ok {
			return v, true, nil
		}
		if len(result.Columns) > 0 {
			return row[result.Columns[0]], true, nil
		}
		return nil, false, nil
	}
}
