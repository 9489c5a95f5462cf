package internal

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDimension  = errors.New("dimension must be positive")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrIllegalState      = errors.New("illegal operation for current state")
	ErrClosed            = errors.New("index is closed")
	ErrOutOfRange        = errors.New("item id out of range")
	ErrInvalidPath       = errors.New("invalid path")
	ErrInvalidCount      = errors.New("result count must not be negative")
	ErrInvalidSearchK    = errors.New("search_k must be positive or -1")
	ErrInvalidTreeCount  = errors.New("tree count must be positive or -1")
	ErrNoSuchItem        = errors.New("item was never inserted")
	ErrTooFewItems       = errors.New("an index needs at least two items to be written to disk")
)

// unknownErrorMessage stands in when the engine fails without saying why.
const unknownErrorMessage = "<unknown error>"

// NativeError is a failure reported by the engine, copied into a Go-owned value.
type NativeError struct {
	Op      string
	Message string
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// DimensionError is returned when a vector's length disagrees with the index.
type DimensionError struct {
	Op       string
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: expected %d, got %d", e.Op, e.Expected, e.Actual)
}

func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// StateError is returned when an operation is not legal in the index's current state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: illegal in state %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool {
	return target == ErrIllegalState
}

// RangeError is returned for item ids beyond the index's storage.
type RangeError struct {
	Op    string
	ID    uint32
	Count int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: item %d out of range [0, %d)", e.Op, e.ID, e.Count)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// PathError is returned for paths the engine cannot be handed.
type PathError struct {
	Op     string
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: invalid path %q: %s", e.Op, e.Path, e.Reason)
}

func (e *PathError) Is(target error) bool {
	return target == ErrInvalidPath
}
