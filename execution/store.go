package execution

import "context"

// Store is the Execution store collaborator, spec.md §6 "Execution store":
// createExecution/updateExecution. Implemented by store.ExecutionStore
// against the metadata database.
type Store interface {
	CreateExecution(ctx context.Context, rec *Record) (string, error)
	UpdateExecution(ctx context.Context, id string, rec *Record) error
}
