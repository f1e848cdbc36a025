package engine

import (
	"fmt"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
)

// State is the engine's lifecycle state machine from spec.md §4.4:
// Uninit -> Loaded -> Ready -> Running -> Ready (each Generate call is
// Running for its whole duration and returns to Ready when it ends; no
// transition leads back to Loaded).
type State int

const (
	StateUninit State = iota
	StateLoaded
	StateReady
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	default:
		return "uninit"
	}
}

var transitions = map[State]map[State]bool{
	StateUninit:  {StateLoaded: true},
	StateLoaded:  {StateReady: true},
	StateReady:   {StateRunning: true},
	StateRunning: {StateReady: true},
}

// wrongStateError names both the attempted and current state so callers
// get a precise ggerr.ErrWrongState-wrapped message rather than a bare
// sentinel.
type wrongStateError struct {
	from, to State
}

func (e *wrongStateError) Error() string {
	return fmt.Sprintf("%s: cannot move from %s to %s", ggerr.ErrWrongState, e.from, e.to)
}

func (e *wrongStateError) Unwrap() error { return ggerr.ErrWrongState }

// move validates and performs a state transition, returning a
// ggerr.ErrWrongState-wrapped error if the edge isn't in the allowed
// transition table.
func move(cur *State, to State) error {
	if !transitions[*cur][to] {
		return &wrongStateError{from: *cur, to: to}
	}
	*cur = to
	return nil
}
