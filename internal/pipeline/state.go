package pipeline

// State is a pipeline stage.
type State int

const (
	StateInit State = iota
	StateCompiling
	StateStubBuilding
	StateLinking
	StateTransforming
	StateEncoding
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:         "init",
	StateCompiling:    "compiling",
	StateStubBuilding: "stub_building",
	StateLinking:      "linking",
	StateTransforming: "transforming",
	StateEncoding:     "encoding",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// next is the only permitted forward transition from each non-terminal state.
var next = map[State]State{
	StateInit:         StateCompiling,
	StateCompiling:    StateStubBuilding,
	StateStubBuilding: StateLinking,
	StateLinking:      StateTransforming,
	StateTransforming: StateEncoding,
	StateEncoding:     StateDone,
}

// CanTransition reports whether from may move to to. Failed is reachable
// from every non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[from] == to
}
