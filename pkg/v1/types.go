package v1

import "github.com/4thel00z/angular/internal"

// Neighbor is one query hit, nearest first.
type Neighbor struct {
	ID       uint32  `json:"id"`
	Distance float32 `json:"distance"`
}

// State is where an Index is in its lifecycle.
type State = internal.State

const (
	StateEmpty        = internal.StateEmpty
	StateAccumulating = internal.StateAccumulating
	StateBuilt        = internal.StateBuilt
	StatePersisted    = internal.StatePersisted
	StateLoaded       = internal.StateLoaded
	StateUnloaded     = internal.StateUnloaded
	StateClosed       = internal.StateClosed
)

// Errors returned by Index. Structured variants match these with errors.Is.
var (
	ErrInvalidDimension  = internal.ErrInvalidDimension
	ErrDimensionMismatch = internal.ErrDimensionMismatch
	ErrIllegalState      = internal.ErrIllegalState
	ErrClosed            = internal.ErrClosed
	ErrOutOfRange        = internal.ErrOutOfRange
	ErrInvalidPath       = internal.ErrInvalidPath
	ErrInvalidCount      = internal.ErrInvalidCount
	ErrInvalidSearchK    = internal.ErrInvalidSearchK
	ErrInvalidTreeCount  = internal.ErrInvalidTreeCount
	ErrNoSuchItem        = internal.ErrNoSuchItem
	ErrTooFewItems       = internal.ErrTooFewItems
)

type (
	// NativeError is a failure reported by the ANN engine, tagged with the
	// engine operation that failed.
	NativeError    = internal.NativeError
	DimensionError = internal.DimensionError
	StateError     = internal.StateError
	RangeError     = internal.RangeError
	PathError      = internal.PathError
)

func toNeighbors(in []internal.Neighbor) []Neighbor {
	out := make([]Neighbor, len(in))
	for i, n := range in {
		out[i] = Neighbor{ID: n.ID, Distance: n.Distance}
	}
	return out
}
