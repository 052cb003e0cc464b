package lib

import (
	"errors"
	"fmt"
)

// State enumerates the states a connection moves through (RFC 793 figure 6).
type State uint8

const (
	Closed State = iota
	Listen
	SynRcvd
	SynSent
	Estab
	FinWait1
	FinWait2
	CloseWait
	Closing
	TimeWait
)

var stateNames = [...]string{
	Closed:    "CLOSED",
	Listen:    "LISTEN",
	SynRcvd:   "SYN-RECEIVED",
	SynSent:   "SYN-SENT",
	Estab:     "ESTABLISHED",
	FinWait1:  "FIN-WAIT-1",
	FinWait2:  "FIN-WAIT-2",
	CloseWait: "CLOSE-WAIT",
	Closing:   "CLOSING",
	TimeWait:  "TIME-WAIT",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// IsSynchronized reports whether both sides have exchanged initial sequence
// numbers. It decides how an unacceptable ACK is answered.
func (s State) IsSynchronized() bool {
	switch s {
	case Closed, Listen, SynRcvd, SynSent:
		return false
	}
	return true
}

// ErrUnhandledState is returned when a peer drives a connection into a
// combination of state and segment this endpoint never produces itself.
var ErrUnhandledState = errors.New("unhandled protocol state")

// StateError describes the segment that hit an unhandled state.
type StateError struct {
	State      State
	Flags      uint8
	PayloadLen int
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s with %s and %d payload bytes", ErrUnhandledState, e.State, FlagString(e.Flags), e.PayloadLen)
}

func (e *StateError) Unwrap() error { return ErrUnhandledState }
