package types

import "github.com/cockroachdb/errors"

// DocumentError is one per-document failure carrying an ErrorCode. The
// Execution Engine does not use it: it records per-document failures as
// execution.Detail entries in Result.Details.
type DocumentError struct {
	DocumentID   string
	Message      string
	ErrorCode    ErrorCode
	ErrorDetails string
}

func (e *DocumentError) Error() string { return e.Message }

// NewDocumentError wraps err as a DocumentError carrying code, preserving
// err's chain via cockroachdb/errors so callers can still errors.Is/As
// through it.
func NewDocumentError(documentID string, code ErrorCode, err error) *DocumentError {
	return &DocumentError{
		DocumentID:   documentID,
		Message:      err.Error(),
		ErrorCode:    code,
		ErrorDetails: errors.Wrap(err, documentID).Error(),
	}
}

// Sentinel configuration-level errors (spec.md §7 "Configuration errors" —
// these fail the whole execution, never just one document).
var (
	ErrMissingTableConfigs  = errors.New("mapping has no tableConfigs")
	ErrUnknownParentTable   = errors.New("tableConfig references an unknown parentTableRef")
	ErrMissingLookupParams  = errors.New("field mapping is missing required lookupParams")
	ErrInvalidConsecutiveFormat = errors.New("consecutive format template is invalid")
)

// Sentinel value/transient errors field resolution and the facade classify
// against (spec.md §7).
var (
	ErrNullValue        = errors.New("null value bound to a non-nullable column")
	ErrTruncation       = errors.New("string value exceeds column max length")
	ErrConnectionLost   = errors.New("connection lost")
	ErrSevereConnection = errors.New("connection could not be re-established")
	ErrDeadlock         = errors.New("deadlock detected")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrPermission       = errors.New("permission denied")
	ErrSQLSyntax        = errors.New("sql syntax error")
	ErrDateConversion   = errors.New("date conversion failed")
	ErrRequiredField    = errors.New("required field is missing a value")
	ErrLookupNotFound   = errors.New("lookup query returned no rows")
)

// ClassifyErrorCode maps a sentinel/wrapped error to its stable
// ErrorCode (spec.md §6/§7). Unrecognised errors classify as
// ErrCodeGeneral.
func ClassifyErrorCode(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNullValue):
		return ErrCodeNullValue
	case errors.Is(err, ErrTruncation):
		return ErrCodeTruncation
	case errors.Is(err, ErrSevereConnection):
		return ErrCodeSevereConnection
	case errors.Is(err, ErrConnectionLost):
		return ErrCodeConnection
	case errors.Is(err, ErrDeadlock):
		return ErrCodeDeadlock
	case errors.Is(err, ErrDuplicateKey):
		return ErrCodeDuplicateKey
	case errors.Is(err, ErrPermission):
		return ErrCodePermission
	case errors.Is(err, ErrSQLSyntax):
		return ErrCodeSQLSyntax
	case errors.Is(err, ErrDateConversion):
		return ErrCodeDateConversion
	default:
		return ErrCodeGeneral
	}
}
