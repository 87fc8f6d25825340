package valve

import (
	"fmt"
	"strings"
)

// Action is a commanded valve transition.
type Action string

// Valve actions.
const (
	ActionOpen  Action = "OPEN"
	ActionClose Action = "CLOSE"
)

// ParseAction converts a case-insensitive action string.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionOpen:
		return ActionOpen, nil
	case ActionClose:
		return ActionClose, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Valid reports whether a is OPEN or CLOSE.
func (a Action) Valid() bool {
	return a == ActionOpen || a == ActionClose
}

// Opens reports whether the action leaves the valve open.
func (a Action) Opens() bool {
	return a == ActionOpen
}

// ActionFor returns the action that drives a valve to the given state.
func ActionFor(open bool) Action {
	if open {
		return ActionOpen
	}
	return ActionClose
}

// Status is one entry of a valve snapshot.
type Status struct {
	Name string `json:"name"`
	Open bool   `json:"open"`
}

// Label renders the state the way recordings and displays show it.
func (s Status) Label() string {
	if s.Open {
		return "OPEN"
	}
	return "CLOSED"
}

// Observer is notified after a valve changes.
//
// The slice is a fresh copy in registration order; observers may keep it.
// Implementations must not call back into the State that notified them.
type Observer interface {
	OnValveStateChanged(valves []Status)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(valves []Status)

// OnValveStateChanged implements Observer.
func (f ObserverFunc) OnValveStateChanged(valves []Status) { f(valves) }
