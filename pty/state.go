package pty

import "fmt"

// State of a Terminal.  A Terminal only moves forward through the
// states, and Closed is final.
type State int32

const (
	Booting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}

	return fmt.Sprintf("State(%d)", int32(s))
}
