// Package evaluator implements the Mapping Evaluator (component D, spec.md
// §4.2): pure per-row transformation producing either a bound parameter or
// a raw SQL literal fragment for each target field, in the spec's fixed
// resolution order B -> L -> S -> D -> T(1-6).
package evaluator

import (
	"strings"

	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
)

// Kind discriminates a resolved field's FieldValue, following spec.md §9's
// design note to model this as a tagged union rather than dynamic dispatch.
type Kind int

const (
	// KindPassthrough means the raw source value is used as-is (bonification
	// passthrough fields B, step B).
	KindPassthrough Kind = iota
	// KindSQLLiteral means Raw is substituted textually into the INSERT's
	// VALUES list, not bound (step S, native SQL function passthrough).
	KindSQLLiteral
	// KindBound means Value is bound as a named parameter (everything else).
	KindBound
)

// FieldValue is the Mapping Evaluator's output for one target field.
type FieldValue struct {
	TargetField string
	Kind        Kind
	Value       any    // meaningful when Kind != KindSQLLiteral
	Raw         string // meaningful when Kind == KindSQLLiteral
}

// BoundParams returns name->value for every KindPassthrough/KindBound field.
func (r Resolution) BoundParams() types.Row {
	out := make(types.Row, len(r.Fields))
	for _, f := range r.Fields {
		if f.Kind != KindSQLLiteral {
			out[f.TargetField] = f.Value
		}
	}
	return out
}

// Resolution is the full set of resolved FieldValues for one table's INSERT.
type Resolution struct {
	Fields []FieldValue
}

// InsertSQL renders an INSERT INTO table (...) VALUES (...) statement,
// named-parameter bound for KindBound/KindPassthrough fields and raw for
// KindSQLLiteral fields, per spec.md §4.2 "Output".
func (r Resolution) InsertSQL(table string) string {
	cols := make([]string, 0, len(r.Fields))
	exprs := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		cols = append(cols, f.TargetField)
		if f.Kind == KindSQLLiteral {
			exprs = append(exprs, f.Raw)
		} else {
			exprs = append(exprs, "@"+f.TargetField)
		}
	}
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(exprs, ", ") + ")"
}

// LookupRunner executes a field mapping's lookupQuery against the target
// connection and returns the resolved scalar per the lookup-from-target
// protocol (spec.md §4.2 "L"). Implemented by the caller (the Execution
// Engine), which owns the target Conn; the evaluator stays pure and takes
// pre-computed lookup results instead of a facade dependency.
type LookupRunner func(fm mapping.FieldMapping, sourceRow types.Row) (value any, found bool, err error)
