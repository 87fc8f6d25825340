package sequence

import (
	"fmt"
	"math"

	"github.com/nerrad567/flowbench-core/internal/valve"
)

// Plan is an immutable compiled sequence. A Plan always has at least one step.
type Plan struct {
	steps []CompiledStep
}

// Compile validates and flattens authored steps into a Plan.
//
// Within a step, each valve keeps its last action and its first position.
// Steps that select no valves are dropped and do not consume a position.
// Timed steps are converted with floor(seconds*1000) and must come to at
// least 1 ms. Compile fails with ErrEmptyPlan when no step survives.
func Compile(steps []Step) (*Plan, error) {
	compiled := make([]CompiledStep, 0, len(steps))

	for i, step := range steps {
		actions, err := collapse(step.Actions)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if len(actions) == 0 {
			continue
		}

		cs := CompiledStep{
			Position: len(compiled) + 1,
			Actions:  actions,
			Hold:     step.Hold,
		}
		if !step.Hold {
			ms, err := durationMS(step.Duration)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			cs.DurationMS = ms
		}
		compiled = append(compiled, cs)
	}

	if len(compiled) == 0 {
		return nil, ErrEmptyPlan
	}
	return &Plan{steps: compiled}, nil
}

func collapse(actions []ValveAction) ([]ValveAction, error) {
	out := make([]ValveAction, 0, len(actions))
	index := make(map[string]int, len(actions))

	for _, a := range actions {
		if !a.Action.Valid() {
			return nil, fmt.Errorf("%w: valve %q action %q", valve.ErrInvalidAction, a.Valve, a.Action)
		}
		if i, seen := index[a.Valve]; seen {
			out[i].Action = a.Action
			continue
		}
		index[a.Valve] = len(out)
		out = append(out, a)
	}
	return out, nil
}

func durationMS(seconds float64) (int, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("%w: %v s", ErrInvalidDuration, seconds)
	}
	ms := math.Floor(seconds * 1000)
	if ms < 1 || ms > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v s", ErrInvalidDuration, seconds)
	}
	return int(ms), nil
}

// StepCount returns the number of compiled steps.
func (p *Plan) StepCount() int {
	return len(p.steps)
}

// Step returns the compiled step at the 0-based index i.
func (p *Plan) Step(i int) CompiledStep {
	s := p.steps[i]
	s.Actions = append([]ValveAction(nil), s.Actions...)
	return s
}

// Steps returns a copy of the compiled steps.
func (p *Plan) Steps() []CompiledStep {
	out := make([]CompiledStep, len(p.steps))
	for i := range p.steps {
		out[i] = p.Step(i)
	}
	return out
}

// Valves returns every valve the plan touches, in first-use order.
func (p *Plan) Valves() []string {
	var names []string
	seen := make(map[string]bool)
	for _, s := range p.steps {
		for _, a := range s.Actions {
			if !seen[a.Valve] {
				seen[a.Valve] = true
				names = append(names, a.Valve)
			}
		}
	}
	return names
}

// TotalDurationMS sums the timed steps. Hold steps add nothing.
func (p *Plan) TotalDurationMS() int {
	total := 0
	for _, s := range p.steps {
		total += s.DurationMS
	}
	return total
}

// Payload is the wire form of a Plan sent to the controller.
type Payload struct {
	Steps     []PayloadStep `json:"steps"`
	StepCount int           `json:"step_count"`
}

// PayloadStep is one step on the wire. DurationMS is null for hold steps.
type PayloadStep struct {
	Actions    []ValveAction `json:"actions"`
	DurationMS *int          `json:"duration_ms"`
	Hold       bool          `json:"hold"`
}

// Payload renders the plan for the controller.
func (p *Plan) Payload() Payload {
	out := Payload{
		Steps:     make([]PayloadStep, len(p.steps)),
		StepCount: len(p.steps),
	}
	for i, s := range p.steps {
		ps := PayloadStep{
			Actions: append([]ValveAction(nil), s.Actions...),
			Hold:    s.Hold,
		}
		if !s.Hold {
			ms := s.DurationMS
			ps.DurationMS = &ms
		}
		out.Steps[i] = ps
	}
	return out
}
