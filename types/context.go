package types

import "context"

// ExecutionContext holds identifying and tracing information for one
// mapping execution, for loggers via Logger.WithExecution. The Execution
// Engine, evaluator, bonification processor and facade take a plain
// context.Context and do not construct or receive one. It plays the role
// the teacher's DatabaseContext plays for GORM calls, minus the gin/HTTP
// plumbing this domain has no use for.
type ExecutionContext struct {
	ExecutionID string
	MappingID   string
	MappingName string
	DocumentID  string // current document being processed, empty outside the loop

	ctx context.Context
}

// NewExecutionContext builds an ExecutionContext bound to ctx; a nil ctx
// is replaced by context.Background().
func NewExecutionContext(ctx context.Context, executionID, mappingID, mappingName string) *ExecutionContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ExecutionContext{
		ExecutionID: executionID,
		MappingID:   mappingID,
		MappingName: mappingName,
		ctx:         ctx,
	}
}

// Context returns the underlying context.Context, defaulting to
// context.Background() when the ExecutionContext is nil or zero-valued.
func (e *ExecutionContext) Context() context.Context {
	if e == nil || e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// WithDocument returns a shallow copy scoped to a specific document id, so
// per-document log lines carry it without mutating the shared context.
func (e *ExecutionContext) WithDocument(documentID string) *ExecutionContext {
	if e == nil {
		return &ExecutionContext{DocumentID: documentID}
	}
	cp := *e
	cp.DocumentID = documentID
	return &cp
}
