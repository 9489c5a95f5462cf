package internal

// State is the lifecycle position of an Index.
type State int

const (
	StateEmpty State = iota
	StateAccumulating
	StateBuilt
	StatePersisted
	StateLoaded
	StateUnloaded
	StateClosed
)

var stateNames = map[State]string{
	StateEmpty:        "empty",
	StateAccumulating: "accumulating",
	StateBuilt:        "built",
	StatePersisted:    "persisted",
	StateLoaded:       "loaded",
	StateUnloaded:     "unloaded",
	StateClosed:       "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Queryable reports whether queries and item lookups are legal.
func (s State) Queryable() bool {
	switch s {
	case StateBuilt, StatePersisted, StateLoaded:
		return true
	}
	return false
}

// FileBacked reports whether queries are served from a mapped file.
func (s State) FileBacked() bool {
	return s == StatePersisted || s == StateLoaded
}
