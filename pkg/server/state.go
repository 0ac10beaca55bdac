package server

import "sync/atomic"

// State is the listener lifecycle: Stopped -> Starting -> Listening -> Stopping -> Stopped.
type State int32

const (
	Stopped State = iota
	Starting
	Listening
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Listening:
		return "listening"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// casState performs atomic CAS transition. Returns false if already changed.
func casState(dst *atomic.Int32, from, to State) bool {
	return dst.CompareAndSwap(int32(from), int32(to))
}
