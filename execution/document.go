package execution

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/bonification"
	"github.com/forbearing/docxfer/evaluator"
	"github.com/forbearing/docxfer/facade"
	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/types"
)

// documentOutcome is processTables' verdict for one document: whether it
// was newly inserted, already present (skip), or failed, plus the detail
// record and any bonification statistics produced along the way.
type documentOutcome struct {
	detail            Detail
	inserted          bool // true only when a new header row was actually inserted
	bonificationStats bonification.Stats
}

// processTables runs spec.md §4.1 step 6.4 over every main table (in
// ascending ExecutionOrder) and its detail tables for one document:
// existence check, lookups, evaluation, insert, recursing into detail
// tables whose parentTableRef matches. The first (lowest ExecutionOrder)
// main table is treated as the document's header: its existence check
// decides skip-vs-process for the whole document, matching the single
// "SELECT TOP 1 1 ... WHERE targetPrimaryKey=@documentId" check spec.md
// §4.1 names. Subsequent main tables (rare — most mappings have exactly
// one) are processed unconditionally once the header clears.
func (e *Engine) processTables(ctx context.Context, m *mapping.Mapping, sourceConn, targetConn *facade.Conn, documentID string, mainTables []mapping.TableConfig, consecutiveFormatted string) documentOutcome {
	lookup := newLookupRunner(ctx, e.facade, targetConn)
	var stats bonification.Stats
	var documentType string

	for i, tc := range mainTables {
		headerRow, skip, err := e.fetchAndCheckExistence(ctx, sourceConn, targetConn, tc, documentID)
		if err != nil {
			return documentOutcome{detail: failDetail(documentID, err)}
		}
		if i == 0 {
			documentType = m.ResolveDocumentType(headerRow)
		}
		if skip {
			if i == 0 {
				return documentOutcome{detail: Detail{
					DocumentID: documentID, DocumentType: documentType, Success: true, Status: types.StatusSkipped,
					Message: "document already present in target",
				}}
			}
			continue
		}

		colTypes, err := e.facade.GetColumnTypes(ctx, targetConn, tc.TargetTable)
		if err != nil {
			return documentOutcome{detail: failDetail(documentID, err)}
		}

		res, err := evaluator.Evaluate(evaluator.Input{
			Mapping: m, TableConfig: &tc, SourceRow: headerRow, ColumnTypes: colTypes,
			Consecutive: evaluator.ConsecutiveValues{Enabled: m.ConsecutiveConfig.Enabled, Formatted: consecutiveFormatted},
			IsDetail:    false, Lookup: lookup,
		})
		if err != nil {
			return documentOutcome{detail: failDetail(documentID, err)}
		}

		if _, err := e.facade.Exec(ctx, targetConn, res.InsertSQL(tc.TargetTable), res.BoundParams()); err != nil {
			return documentOutcome{detail: failDetail(documentID, err)}
		}

		detailStats, err := e.processDetailTables(ctx, m, sourceConn, targetConn, tc, documentID, consecutiveFormatted, lookup)
		if err != nil {
			return documentOutcome{detail: failDetail(documentID, err)}
		}
		stats = mergeStats(stats, detailStats)
	}

	return documentOutcome{
		detail:            Detail{DocumentID: documentID, DocumentType: documentType, Success: true, Status: types.StatusCompleted, Message: "processed"},
		inserted:          true,
		bonificationStats: stats,
	}
}

// fetchAndCheckExistence fetches tc's header row for documentID and runs
// the target existence check (spec.md §4.1 step 6.4). The row is returned
// even when skip is true, so callers can still resolve the document type
// (spec.md §4.1 step 6.4.2) off an already-present document.
func (e *Engine) fetchAndCheckExistence(ctx context.Context, sourceConn, targetConn *facade.Conn, tc mapping.TableConfig, documentID string) (types.Row, bool, error) {
	query, params := fetchQuery(tc, documentID)
	result, err := e.facade.Query(ctx, sourceConn, query, params)
	if err != nil {
		return nil, false, errors.Wrapf(err, "fetch header for table %q", tc.Name)
	}
	if len(result.Rows) == 0 {
		return nil, false, errors.Newf("no header row found in %q for document %q", tc.SourceTable, documentID)
	}
	headerRow := result.Rows[0]

	existsQuery, _ := existenceQuery(tc)
	existsResult, err := e.facade.Query(ctx, targetConn, existsQuery, types.Row{"documentId": documentID})
	if err != nil {
		return nil, false, errors.Wrapf(err, "existence check for table %q", tc.Name)
	}
	if len(existsResult.Rows) > 0 {
		return headerRow, true, nil
	}
	return headerRow, false, nil
}

// processDetailTables processes every detail table whose parentTableRef is
// parent.Name, in ascending ExecutionOrder, applying the Bonification
// Processor to the one detail table named by bonificationConfig.sourceTable
// when hasBonificationProcessing is set (spec.md §4.1 step 6.4, §4.3).
func (e *Engine) processDetailTables(ctx context.Context, m *mapping.Mapping, sourceConn, targetConn *facade.Conn, parent mapping.TableConfig, documentID, consecutiveFormatted string, lookup evaluator.LookupRunner) (bonification.Stats, error) {
	var stats bonification.Stats

	for _, tc := range m.DetailTableConfigs(parent.Name) {
		query, params := fetchQuery(tc, documentID)
		result, err := e.facade.Query(ctx, sourceConn, query, params)
		if err != nil {
			return stats, errors.Wrapf(err, "fetch details for table %q", tc.Name)
		}

		colTypes, err := e.facade.GetColumnTypes(ctx, targetConn, tc.TargetTable)
		if err != nil {
			return stats, errors.Wrapf(err, "column types for table %q", tc.Name)
		}

		rows := result.Rows
		bc := m.BonificationConfig
		if m.HasBonificationProcessing && tc.SourceTable == bc.SourceTable {
			groups, s, err := bonification.Process(bc, rows, mapping.CustomerContext{})
			if err != nil {
				return stats, errors.Wrapf(err, "bonification processing for table %q", tc.Name)
			}
			stats = mergeStats(stats, s)
			rows = rowsFromGroups(groups, bc)
		}

		for _, row := range rows {
			res, err := evaluator.Evaluate(evaluator.Input{
				Mapping: m, TableConfig: &tc, SourceRow: row, ColumnTypes: colTypes,
				Consecutive: evaluator.ConsecutiveValues{Enabled: m.ConsecutiveConfig.Enabled, Formatted: consecutiveFormatted},
				IsDetail:    true, Lookup: lookup,
			})
			if err != nil {
				return stats, err
			}
			if _, err := e.facade.Exec(ctx, targetConn, res.InsertSQL(tc.TargetTable), res.BoundParams()); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// rowsFromGroups flattens bonification.Process's groups back into source
// rows, stamping each line's target lineNumber/bonificationLineReference
// fields so the evaluator's step B (spec.md §4.2) can read them straight
// off the row.
func rowsFromGroups(groups []bonification.Group, bc mapping.BonificationConfig) []types.Row {
	var rows []types.Row
	for _, g := range groups {
		for _, line := range g.Lines {
			row := line.Row
			if len(bc.LineNumberField) > 0 {
				row[bc.LineNumberField] = line.LineNumber
			}
			if len(bc.BonificationLineReferenceField) > 0 {
				if line.ParentLineRef > 0 {
					row[bc.BonificationLineReferenceField] = line.ParentLineRef
				} else {
					row[bc.BonificationLineReferenceField] = nil
				}
			}
			rows = append(rows, row)
		}
	}
	return rows
}

func mergeStats(a, b bonification.Stats) bonification.Stats {
	if a.BonificationTypes == nil {
		a.BonificationTypes = map[string]int{}
	}
	a.TotalBonifications += b.TotalBonifications
	a.TotalPromotions += b.TotalPromotions
	a.ProcessedDetails += b.ProcessedDetails
	for k, v := range b.BonificationTypes {
		a.BonificationTypes[k] += v
	}
	return a
}

func failDetail(documentID string, err error) Detail {
	return Detail{
		DocumentID:   documentID,
		Success:      false,
		Status:       types.StatusFailed,
		Message:      err.Error(),
		ErrorCode:    types.ClassifyErrorCode(err),
		ErrorDetails: err.Error(),
	}
}
