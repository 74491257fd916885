package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies stage failures for routing and reporting.
type Kind string

const (
	// KindInvalidInput marks oversized files or unparseable identifiers.
	// Fatal, never retried, surfaced as a 4xx-equivalent.
	KindInvalidInput Kind = "InvalidInput"
	// KindReadFailure marks an unreadable or corrupt source object. Shards
	// capture this as data (an error-status partial result), not as a
	// stage failure.
	KindReadFailure Kind = "ReadFailure"
	// KindPersistence marks a rejected store write. Fatal for the stage.
	KindPersistence Kind = "PersistenceError"
	// KindContractViolation marks an aggregation call with fewer partial
	// results than work items issued.
	KindContractViolation Kind = "AggregationContractViolation"
	// KindInternal is the fallback classification.
	KindInternal Kind = "Internal"
)

// StageError is a typed stage-level failure. It preserves the originating
// stage name, the error kind, and the cause so the failure formatter can
// render them verbatim.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, kind Kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func stageErrf(stage string, kind Kind, format string, args ...interface{}) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the error kind, defaulting to Internal for untyped errors.
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// StageOf extracts the originating stage name, or "" for untyped errors.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// CauseOf extracts the underlying cause text for failure reports.
func CauseOf(err error) string {
	var se *StageError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
