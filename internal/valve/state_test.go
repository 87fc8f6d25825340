package valve

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

// ─── Test Helpers ───────────────────────────────────────────────

type recordingObserver struct {
	mu     sync.Mutex
	events [][]Status
}

func (r *recordingObserver) OnValveStateChanged(valves []Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, valves)
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingObserver) last() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func newTestState(t *testing.T) (*State, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	s, err := NewState([]string{"A", "B", "C"}, obs)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	return s, obs
}

// ─── Tests ──────────────────────────────────────────────────────

func TestNewState_RejectsBadNames(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"empty name", []string{"A", ""}},
		{"duplicate", []string{"A", "B", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewState(tt.names, nil)
			if !errors.Is(err, ErrInvalidValve) {
				t.Errorf("NewState(%v) error = %v, want ErrInvalidValve", tt.names, err)
			}
		})
	}
}

func TestState_InitiallyClosed(t *testing.T) {
	s, obs := newTestState(t)

	for _, st := range s.Snapshot() {
		if st.Open {
			t.Errorf("valve %s open at start", st.Name)
		}
	}
	if obs.count() != 0 {
		t.Errorf("observer called %d times during construction", obs.count())
	}
}

func TestState_SetEmitsFullOrderedSnapshot(t *testing.T) {
	s, obs := newTestState(t)

	prev, err := s.Set("B", true)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if prev {
		t.Error("Set() previous = true, want false")
	}

	want := []Status{{"A", false}, {"B", true}, {"C", false}}
	if obs.count() != 1 {
		t.Fatalf("observer called %d times, want 1", obs.count())
	}
	if got := obs.last(); !reflect.DeepEqual(got, want) {
		t.Errorf("snapshot = %v, want %v", got, want)
	}
}

func TestState_SetIsIdempotent(t *testing.T) {
	s, obs := newTestState(t)

	if _, err := s.Set("A", true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	prev, err := s.Set("A", true)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !prev {
		t.Error("second Set() previous = false, want true")
	}
	if obs.count() != 1 {
		t.Errorf("observer called %d times, want 1", obs.count())
	}

	// Closing an already closed valve is silent too.
	if _, err := s.Set("C", false); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if obs.count() != 1 {
		t.Errorf("observer called %d times after no-op close, want 1", obs.count())
	}
}

func TestState_UnknownValve(t *testing.T) {
	s, obs := newTestState(t)

	if _, err := s.Set("Z", true); !errors.Is(err, ErrUnknownValve) {
		t.Errorf("Set(Z) error = %v, want ErrUnknownValve", err)
	}
	if _, err := s.Get("Z"); !errors.Is(err, ErrUnknownValve) {
		t.Errorf("Get(Z) error = %v, want ErrUnknownValve", err)
	}
	if obs.count() != 0 {
		t.Errorf("observer called %d times, want 0", obs.count())
	}
}

func TestState_CloseAll(t *testing.T) {
	s, obs := newTestState(t)
	_, _ = s.Set("A", true)
	_, _ = s.Set("C", true)

	changed := s.CloseAll()

	if changed != 2 {
		t.Errorf("CloseAll() = %d, want 2", changed)
	}
	if obs.count() != 4 {
		t.Errorf("observer called %d times, want 4", obs.count())
	}
	if s.OpenCount() != 0 {
		t.Errorf("OpenCount() = %d after CloseAll, want 0", s.OpenCount())
	}
	if s.CloseAll() != 0 {
		t.Error("second CloseAll() should change nothing")
	}
}

func TestState_SnapshotIsCopy(t *testing.T) {
	s, _ := newTestState(t)
	snap := s.Snapshot()
	snap[0].Open = true

	if open, _ := s.Get("A"); open {
		t.Error("mutating a snapshot changed the state")
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"OPEN", ActionOpen, false},
		{"close", ActionClose, false},
		{" Open ", ActionOpen, false},
		{"TOGGLE", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAction(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidAction) {
				t.Errorf("ParseAction(%q) error = %v, want ErrInvalidAction", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAction(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatus_Label(t *testing.T) {
	if got := (Status{Open: true}).Label(); got != "OPEN" {
		t.Errorf("Label() = %q, want OPEN", got)
	}
	if got := (Status{}).Label(); got != "CLOSED" {
		t.Errorf("Label() = %q, want CLOSED", got)
	}
}

func TestState_ConcurrentSetsNotifyInOrder(t *testing.T) {
	s, obs := newTestState(t)

	var wg sync.WaitGroup
	for _, name := range []string{"A", "B", "C"} {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := s.Set(name, i%2 == 0); err != nil {
					t.Errorf("Set(%s) error = %v", name, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.events) != 3*200 {
		t.Fatalf("events = %d, want %d", len(obs.events), 3*200)
	}
	// Each snapshot differs from its predecessor by exactly one valve.
	prev := []Status{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	for n, snap := range obs.events {
		diff := 0
		for i := range snap {
			if snap[i].Open != prev[i].Open {
				diff++
			}
		}
		if diff != 1 {
			t.Fatalf("event %d changes %d valves: %v -> %v", n, diff, prev, snap)
		}
		prev = snap
	}
	if !reflect.DeepEqual(prev, s.Snapshot()) {
		t.Errorf("last event %v != final snapshot %v", prev, s.Snapshot())
	}
}
