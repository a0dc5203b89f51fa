package status

import "sync/atomic"

// Status is the lifecycle of a long-lived component. It only ever moves
// forward, Ready to Running to Closed, and every move goes through
// Transition so concurrent callers race instead of double-running.
type Status int64

const (
	Ready Status = iota
	Running
	Closed
)

func (s Status) Ready() bool {
	return s == Ready
}

func (s Status) Running() bool {
	return s == Running
}

func (s Status) Closed() bool {
	return s == Closed
}

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transition atomically moves the status from from to to, reporting whether
// this caller performed the move.
func Transition(statusPointer *Status, from, to Status) bool {
	return atomic.CompareAndSwapInt64((*int64)(statusPointer), int64(from), int64(to))
}
