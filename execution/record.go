// Package execution implements the Execution Engine (component F, spec.md
// §4.1): the per-document loop, its state machine, progress reporting,
// cancellation, marker policy application, and audit persistence. It is
// the orchestrator that calls every other component (facade, evaluator,
// bonification, consecutive) to move one batch of documents.
package execution

import (
	"time"

	"github.com/forbearing/docxfer/bonification"
	"github.com/forbearing/docxfer/types"
)

// Record is the persisted Execution Record, spec.md §3.3.
type Record struct {
	ID                string
	MappingID         string
	StartTime         time.Time
	EndTime           time.Time
	Status            types.Status
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	SkippedRecords    int
	Details           []Detail
	ErrorDetails      string
}

// Detail is one per-document outcome, spec.md §7 "converts failures into
// details[] entries with {documentId, success, message, errorCode,
// errorDetails}".
type Detail struct {
	DocumentID   string
	DocumentType string // resolved via documentTypeRules, "unknown" if no rule matched; empty on failed documents
	Success      bool
	Status       types.Status // completed, skipped, failed, cancelled
	Message      string
	ErrorCode    types.ErrorCode
	ErrorDetails string
}

// MarkingResult summarizes how source rows were marked processed, spec.md
// §4.1 steps 7-8.
type MarkingResult struct {
	Strategy         types.MarkStrategy
	MarkedIDs        []string
	RolledBackIDs    []string
	RollbackAttempted bool
	RollbackError    string
}

// Result is the Execution Engine's output aggregate, spec.md §4.1.
type Result struct {
	ExecutionID       string
	Status            types.Status
	Processed         int
	Failed            int
	Skipped           int
	ByType            map[string]int
	Details           []Detail
	ConsecutivesUsed  []string
	BonificationStats *bonification.Stats
	Marking           MarkingResult
}
