package store

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/execution"
	"gorm.io/gorm"
)

// ExecutionStore implements execution.Store against the metadata store.
type ExecutionStore struct{ db *gorm.DB }

var _ execution.Store = (*ExecutionStore)(nil)

// NewExecutionStore builds an ExecutionStore over db (normally store.DB).
func NewExecutionStore(db *gorm.DB) *ExecutionStore { return &ExecutionStore{db: db} }

// CreateExecution persists a new Record, called by AuditWriter's shutdown
// drain and by UpdateExecution when no row for the id exists yet.
func (s *ExecutionStore) CreateExecution(ctx context.Context, rec *execution.Record) (string, error) {
	body, err := json.Marshal(rec.Details)
	if err != nil {
		return "", errors.Wrap(err, "store: marshal execution details")
	}
	row := executionRecord{
		ID: rec.ID, MappingID: rec.MappingID, Status: string(rec.Status),
		StartTime: rec.StartTime, EndTime: rec.EndTime,
		TotalRecords: rec.TotalRecords, SuccessfulRecords: rec.SuccessfulRecords,
		FailedRecords: rec.FailedRecords, SkippedRecords: rec.SkippedRecords,
		Details: body, ErrorDetails: rec.ErrorDetails,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return "", errors.Wrapf(err, "store: create execution %q", rec.ID)
	}
	return row.ID, nil
}

// UpdateExecution overwrites the stored Record for id, called by
// AuditWriter on every flush; it creates the row when none exists yet.
func (s *ExecutionStore) UpdateExecution(ctx context.Context, id string, rec *execution.Record) error {
	body, err := json.Marshal(rec.Details)
	if err != nil {
		return errors.Wrap(err, "store: marshal execution details")
	}
	updates := map[string]any{
		"status": string(rec.Status), "end_time": rec.EndTime,
		"total_records": rec.TotalRecords, "successful_records": rec.SuccessfulRecords,
		"failed_records": rec.FailedRecords, "skipped_records": rec.SkippedRecords,
		"details": body, "error_details": rec.ErrorDetails,
	}
	res := s.db.WithContext(ctx).Model(&executionRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "store: update execution %q", id)
	}
	if res.RowsAffected == 0 {
		return s.createFallback(ctx, id, rec)
	}
	return nil
}

// createFallback creates the row when UpdateExecution matched none. The
// audit writer's flush path only calls UpdateExecution, so the first write
// of every Record arrives here.
func (s *ExecutionStore) createFallback(ctx context.Context, id string, rec *execution.Record) error {
	rec.ID = id
	_, err := s.CreateExecution(ctx, rec)
	return err
}
