package store

import "errors"

// ErrKind classifies a StorageError so callers can branch on failure
// mode without string matching.
type ErrKind int

const (
	ErrUnknown ErrKind = iota
	ErrNotFound
	ErrLocked
	ErrConflict
	ErrInvalidNotebook
)

// StorageError wraps an underlying error with a classification.
type StorageError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func wrap(kind ErrKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: kind, Op: op, Err: err}
}

// Is supports errors.Is(err, store.ErrNotFoundSentinel) style checks by
// comparing Kind against a sentinel wrapped with nil cause.
func (e *StorageError) Is(target error) bool {
	var se *StorageError
	if errors.As(target, &se) {
		return se.Kind == e.Kind
	}
	return false
}

// Sentinel errors for errors.Is comparisons against a bare Kind.
var (
	ErrNotFoundSentinel        = &StorageError{Kind: ErrNotFound}
	ErrLockedSentinel          = &StorageError{Kind: ErrLocked}
	ErrConflictSentinel        = &StorageError{Kind: ErrConflict}
	ErrInvalidNotebookSentinel = &StorageError{Kind: ErrInvalidNotebook}
)
