package valve

import (
	"fmt"
	"sync"
)

// State is the authoritative record of whether each valve is open. It is
// safe for concurrent use; observers see changes in the order they were made.
type State struct {
	// notifyMu serializes Set so observer callbacks follow mutation order.
	// The observer must not call back into Set.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	names    []string
	index    map[string]int
	open     []bool
	observer Observer
}

// NewState registers the given valves, all closed. The observer may be nil.
func NewState(names []string, observer Observer) (*State, error) {
	s := &State{
		names:    make([]string, 0, len(names)),
		index:    make(map[string]int, len(names)),
		open:     make([]bool, len(names)),
		observer: observer,
	}
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrInvalidValve)
		}
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidValve, name)
		}
		s.index[name] = len(s.names)
		s.names = append(s.names, name)
	}
	return s, nil
}

// Has reports whether name is registered.
func (s *State) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Get returns whether the named valve is open.
func (s *State) Get(name string) (bool, error) {
	i, ok := s.index[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownValve, name)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open[i], nil
}

// Set drives the named valve to open and returns its previous value.
// The observer is called only when the value changes.
func (s *State) Set(name string, open bool) (bool, error) {
	i, ok := s.index[name]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownValve, name)
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.open[i]
	if prev == open {
		s.mu.Unlock()
		return prev, nil
	}
	s.open[i] = open
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return prev, nil
}

// CloseAll closes every open valve, notifying once per valve that changes,
// and returns how many changed.
func (s *State) CloseAll() int {
	changed := 0
	for _, name := range s.names {
		prev, _ := s.Set(name, false)
		if prev {
			changed++
		}
	}
	return changed
}

// Snapshot returns the full valve vector in registration order.
func (s *State) Snapshot() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// OpenCount returns the number of open valves.
func (s *State) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.open {
		if o {
			n++
		}
	}
	return n
}

func (s *State) snapshotLocked() []Status {
	out := make([]Status, len(s.names))
	for i, name := range s.names {
		out[i] = Status{Name: name, Open: s.open[i]}
	}
	return out
}

func (s *State) notify(snap []Status) {
	if s.observer != nil {
		s.observer.OnValveStateChanged(snap)
	}
}
