package neograph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors returned (usually wrapped) by the compiler, the materializer and the write path.
// They can be matched with errors.Is.
var (
	// ErrNotFound is returned by lookups that expect at least one record and found none.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidSequence indicates a path specification whose node count is not exactly one more
	// than its relationship count.
	ErrInvalidSequence = errors.New("each relationship must have a start and end node")

	// ErrInvalidSymbol indicates a relationship arrow symbol outside "-", "->" and "<-".
	ErrInvalidSymbol = errors.New("invalid relationship symbol")

	// ErrInvalidKeyword indicates a statement keyword the compiler does not emit for patterns.
	ErrInvalidKeyword = errors.New("invalid statement keyword")

	// ErrMissingEndpoint indicates a relationship without a start or end node.
	ErrMissingEndpoint = errors.New("relationship endpoint is missing")

	// ErrAlreadyExists indicates that a create was refused because a matching element exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrMultipleNodes indicates that required-field criteria matched more than one node.
	ErrMultipleNodes = errors.New("multiple nodes found")

	// ErrUnsupportedType indicates a model type that does not satisfy the Node or Relationship contract.
	ErrUnsupportedType = errors.New("unsupported model type")
)

// ValidationError reports a malformed request detected before any query is executed.
type ValidationError struct {
	// Op is the operation that rejected the request (e.g. "Compiler.CompileSequence").
	Op string
	// Err is the underlying cause, usually one of the sentinel errors.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("neograph: %s: validation failed: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(op string, err error) *ValidationError {
	return &ValidationError{Op: op, Err: err}
}

// ConflictError reports that the store already holds data incompatible with the requested write,
// either an existing element on create or several candidates for a single-node match.
// The matched elements that could be decoded are attached so callers can decide how to proceed.
type ConflictError struct {
	Op            string
	Err           error
	Nodes         map[uuid.UUID]Node
	Relationships map[uuid.UUID]Relationship
	// Matched counts every matching element in the store, decoded or not.
	Matched int
}

func (e *ConflictError) Error() string {
	count := max(e.Matched, len(e.Nodes)+len(e.Relationships))
	return fmt.Sprintf("neograph: %s: %v (%d matching)", e.Op, e.Err, count)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// MaterializationError reports a single graph element that could not be turned into a model.
// It is non-fatal: the materializer records it and moves on to the next element.
type MaterializationError struct {
	ElementID string
	Label     string
	Err       error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("neograph: materialize %s (%s): %v", e.Label, e.ElementID, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }
