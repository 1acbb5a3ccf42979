package body

// Kind is the shape of a body value once it has been adapted.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindBytes
	KindText
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// State is a forwarding session state.
type State uint8

const (
	StateIdle State = iota
	StateDraining
	StateCompleted
	StateErrored
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored || s == StateAborted
}
