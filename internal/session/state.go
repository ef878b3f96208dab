package session

// State is a pipeline phase.
type State int

const (
	StateInitializing State = iota
	StateMixing
	StateConcatenating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateMixing:
		return "mixing"
	case StateConcatenating:
		return "concatenating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
