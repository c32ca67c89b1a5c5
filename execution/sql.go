package execution

import (
	"strconv"
	"strings"

	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
)

// fetchQuery builds the SQL + bound params to read tc's rows for one
// document, spec.md §4.1 step 6.4: "either customQuery substituting
// @documentId, or SELECT * FROM source WHERE primaryKey=@documentId [AND
// filter]". customQuery substitutes @documentId textually, never bound
// (spec.md boundary case: "customQuery containing @documentId substituted
// textually (not bound)").
func fetchQuery(tc mapping.TableConfig, documentID string) (string, types.Row) {
	if len(tc.CustomQuery) > 0 {
		return strings.ReplaceAll(tc.CustomQuery, "@documentId", documentID), nil
	}

	q := "SELECT * FROM " + tc.SourceTable + " WHERE " + tc.PrimaryKey + "=@documentId"
	if len(tc.FilterCondition) > 0 {
		q += " AND " + tc.FilterCondition
	}
	if len(tc.OrderByColumn) > 0 {
		q += " ORDER BY " + tc.OrderByColumn
	}
	return q, types.Row{"documentId": documentID}
}

// existenceQuery builds the target existence-check query, spec.md §4.1 step
// 6.4: "SELECT TOP 1 1 FROM target WHERE targetPrimaryKey=@documentId".
func existenceQuery(tc mapping.TableConfig) (string, string) {
	pk := tc.TargetPrimaryKey
	if len(pk) == 0 {
		pk = tc.PrimaryKey
	}
	return "SELECT TOP 1 1 FROM " + tc.TargetTable + " WHERE " + pk + "=@documentId", pk
}

// markQuery builds the source UPDATE statement marking one or more ids
// processed (or unprocessed on rollback). ids are bound as @id0, @id1, ...
// rather than interpolated, so this never builds a raw "IN (...)" string
// from untrusted values.
func markQuery(tc mapping.TableConfig, mc mapping.MarkProcessedConfig, ids []string, value string) (string, types.Row) {
	placeholders := make([]string, len(ids))
	params := types.Row{"value": value}
	for i, id := range ids {
		name := "id" + strconv.Itoa(i)
		placeholders[i] = "@" + name
		params[name] = id
	}
	q := "UPDATE " + tc.SourceTable + " SET " + mc.Field + "=@value WHERE " + tc.PrimaryKey + " IN (" + strings.Join(placeholders, ", ") + ")"
	return q, params
}
