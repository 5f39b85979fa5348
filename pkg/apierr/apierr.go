// Package apierr implements the single error-kind taxonomy surfaced across
// the task-orchestration and artifact-provenance subsystem: every error a
// caller sees carries a code, a human-readable detail, and a timestamp.
package apierr

import (
	"fmt"
	"time"
)

// Kind classifies an error for the caller, independent of its Go type.
type Kind string

// Error kinds.
const (
	KindValidation    Kind = "VALIDATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindSchemaInvalid Kind = "SCHEMA_INVALID"
	KindTransient     Kind = "TRANSIENT"
	KindCancelled     Kind = "CANCELLED"
	KindFatal         Kind = "FATAL"
	KindInternal      Kind = "INTERNAL"
)

// Well-known error codes surfaced 1:1 to callers of C12 (jump/find) and C2
// (artifact store).
const (
	CodeInvalidKind         = "INVALID_KIND"
	CodeInvalidDirection    = "INVALID_DIRECTION"
	CodeConflictingFilters  = "CONFLICTING_FILTERS"
	CodeInvalidConfidence   = "INVALID_CONFIDENCE"
	CodeInvalidLimit        = "INVALID_LIMIT"
	CodeVideoNotFound       = "VIDEO_NOT_FOUND"
	CodeArtifactNotFound    = "ARTIFACT_NOT_FOUND"
	CodeSchemaInvalid       = "SCHEMA_INVALID"
	CodeAssetUnknown        = "ASSET_UNKNOWN"
	CodeDuplicate           = "DUPLICATE"
	CodeInvalidValue        = "INVALID_VALUE"
	CodeMissingProvenance   = "MISSING_PROVENANCE"
	CodeInputHashMismatch   = "INPUT_HASH_MISMATCH"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error is the one typed error surfaced across component boundaries.
type Error struct {
	Kind      Kind
	Code      string
	Detail    string
	Timestamp time.Time
	Err       error // wrapped cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Detail)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error stamped with the current time.
func New(kind Kind, code, detail string) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail, Timestamp: timeNow()}
}

// Wrap builds an Error around an existing cause.
func Wrap(kind Kind, code, detail string, err error) *Error {
	return &Error{Kind: kind, Code: code, Detail: detail, Timestamp: timeNow(), Err: err}
}

// Internal collapses any unexpected internal error to INTERNAL_ERROR, per
// the error-handling design's "internal errors collapse to a single code
// plus correlation id" rule. correlationID is attached to Detail so it
// survives Error()'s plain string rendering.
func Internal(correlationID string, err error) *Error {
	return Wrap(KindInternal, CodeInternal, fmt.Sprintf("internal error (correlation_id=%s)", correlationID), err)
}

var timeNow = time.Now
