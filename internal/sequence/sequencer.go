package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/flowbench-core/internal/valve"
)

// Status messages shown to the operator.
const (
	StatusPanic          = "PANIC: all valves closed"
	StatusComplete       = "Sequence complete."
	StatusStopped        = "Sequence stopped."
	StatusEdited         = "Sequence edited, resend required."
	StatusNoSteps        = "No steps to send."
	StatusEmptyPlan      = "No valves selected in any step."
	StatusSendFirst      = "Send sequence first."
	StatusBusy           = "Sequence is running. Stop it before sending or running again."
	StatusNotRunning     = "No sequence is running."
	StatusSuperseded     = "Sequence changed while waiting for the controller, resend required."
	statusSentFormat     = "Sent %d step(s) to controller.\nPress RUN when ready."
	statusRunningFormat  = "Running %d step(s) on controller..."
	statusStepFormat     = "Step %d/%d (%d ms)."
	statusHoldFormat     = "Step %d/%d holding. Advance or stop to continue."
	statusSinkFailFormat = "Controller did not acknowledge %s: %v"
)

// Sequencer owns the valve state and the authored, sent and running plans of
// one bench, and drives a running plan step by step.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Sequencer struct {
	mu sync.Mutex

	valves   *valve.State
	commands CommandSink
	events   EventSink
	clock    Clock
	runs     RunRecorder
	logger   Logger

	state      State
	lastChange time.Time
	authored   []Step
	sent       *Plan
	running    *Plan
	current    int
	holding    bool
	run        *Run

	// epoch changes on every edit and panic; an acknowledgement that
	// returns under a different epoch is stale.
	epoch    uint64
	inflight bool

	// panics counts panics. Queued valve commands captured under an older
	// count are dropped instead of sent.
	panics atomic.Uint64
	sendMu sync.Mutex

	timerMu sync.Mutex
	timer   Timer
	gen     atomic.Uint64
}

// NewSequencer creates a Sequencer for the given valves, all closed, in the
// idle state. events may be nil.
func NewSequencer(valveNames []string, commands CommandSink, events EventSink) (*Sequencer, error) {
	if commands == nil {
		return nil, errors.New("sequence: command sink is required")
	}
	if events == nil {
		events = noopEvents{}
	}

	valves, err := valve.NewState(valveNames, events)
	if err != nil {
		return nil, err
	}

	return &Sequencer{
		valves:     valves,
		commands:   commands,
		events:     events,
		clock:      SystemClock{},
		logger:     noopLogger{},
		state:      StateIdle,
		lastChange: time.Now(),
	}, nil
}

// SetLogger sets the logger for the sequencer.
func (s *Sequencer) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetRunRecorder enables run history. Pass nil to disable it.
func (s *Sequencer) SetRunRecorder(runs RunRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = runs
}

// SetClock replaces the clock used for step timers. Call before Run.
func (s *Sequencer) SetClock(clock Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	s.lastChange = clock.Now()
}

// ─── Authoring ──────────────────────────────────────────────────

// SetSteps replaces the authored steps. Any sent plan is invalidated and
// must be sent again. A running plan is not affected.
func (s *Sequencer) SetSteps(steps []Step) error {
	if err := s.validateSteps(steps); err != nil {
		s.mu.Lock()
		s.reportLocked(err.Error(), SeverityWarning)
		s.mu.Unlock()
		return err
	}

	cp := make([]Step, len(steps))
	for i, st := range steps {
		cp[i] = st
		cp[i].Actions = append([]ValveAction(nil), st.Actions...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hadSent := s.sent != nil
	s.authored = cp
	s.sent = nil
	s.epoch++

	if s.state != StateRunning {
		s.setStateLocked(StatePlanEdited)
	}
	if hadSent {
		s.reportLocked(StatusEdited, SeverityWarning)
	}
	s.logger.Debug("sequence steps updated", "steps", len(cp))
	return nil
}

func (s *Sequencer) validateSteps(steps []Step) error {
	for i, st := range steps {
		for _, a := range st.Actions {
			if !s.valves.Has(a.Valve) {
				return fmt.Errorf("step %d: %w: %q", i+1, valve.ErrUnknownValve, a.Valve)
			}
			if !a.Action.Valid() {
				return fmt.Errorf("step %d: %w: %q", i+1, valve.ErrInvalidAction, a.Action)
			}
		}
	}
	return nil
}

// Steps returns a copy of the authored steps.
func (s *Sequencer) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Step, len(s.authored))
	for i, st := range s.authored {
		out[i] = st
		out[i].Actions = append([]ValveAction(nil), st.Actions...)
	}
	return out
}

// SentPlan returns the live sent plan, or nil.
func (s *Sequencer) SentPlan() *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// ─── Controller handshake ───────────────────────────────────────

// Send compiles the authored steps and transmits the plan to the controller.
// The state changes to sent only once the controller acknowledges.
func (s *Sequencer) Send(ctx context.Context) (*Plan, error) {
	s.mu.Lock()
	if s.state == StateRunning || s.inflight {
		s.reportLocked(StatusBusy, SeverityWarning)
		s.mu.Unlock()
		return nil, ErrSequenceBusy
	}
	if len(s.authored) == 0 {
		s.reportLocked(StatusNoSteps, SeverityWarning)
		s.mu.Unlock()
		return nil, ErrNoSteps
	}

	plan, err := Compile(s.authored)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrEmptyPlan) {
			msg = StatusEmptyPlan
		}
		s.reportLocked(msg, SeverityWarning)
		s.mu.Unlock()
		return nil, err
	}

	s.inflight = true
	epoch := s.epoch
	s.mu.Unlock()

	ackErr := s.commands.SendSequence(ctx, plan.Payload())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false

	if ackErr != nil {
		s.logger.Warn("sequence not acknowledged", "steps", plan.StepCount(), "error", ackErr)
		s.reportLocked(fmt.Sprintf(statusSinkFailFormat, "LOAD_SEQUENCE", ackErr), SeverityError)
		return nil, fmt.Errorf("%w: %w", ErrSinkUnavailable, ackErr)
	}
	if s.epoch != epoch {
		s.reportLocked(StatusSuperseded, SeverityWarning)
		return nil, ErrSuperseded
	}

	s.sent = plan
	s.setStateLocked(StateSent)
	s.reportLocked(fmt.Sprintf(statusSentFormat, plan.StepCount()), SeveritySuccess)
	s.logger.Info("sequence sent", "steps", plan.StepCount(), "valves", plan.Valves(), "total_ms", plan.TotalDurationMS())
	return plan, nil
}

// Run starts the sent plan. The first step is applied as soon as the
// controller acknowledges; later steps follow on their timers.
func (s *Sequencer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning || s.inflight {
		s.reportLocked(StatusBusy, SeverityWarning)
		s.mu.Unlock()
		return ErrSequenceBusy
	}
	if s.sent == nil {
		s.reportLocked(StatusSendFirst, SeverityWarning)
		s.mu.Unlock()
		return ErrNotSent
	}

	plan := s.sent
	epoch := s.epoch
	s.inflight = true
	s.mu.Unlock()

	ackErr := s.commands.RunSequence(ctx)

	s.mu.Lock()
	s.inflight = false

	if ackErr != nil {
		s.logger.Warn("run not acknowledged", "error", ackErr)
		s.reportLocked(fmt.Sprintf(statusSinkFailFormat, "RUN_SEQUENCE", ackErr), SeverityError)
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, ackErr)
	}
	if s.epoch != epoch || s.sent != plan {
		s.reportLocked(StatusSuperseded, SeverityWarning)
		s.mu.Unlock()
		return ErrSuperseded
	}

	s.running = plan
	s.setStateLocked(StateRunning)
	s.startRunLocked(ctx, plan)
	s.reportLocked(fmt.Sprintf(statusRunningFormat, plan.StepCount()), SeverityInfo)
	cmds := s.enterStepLocked(0)
	seq := s.panics.Load()
	s.mu.Unlock()

	s.dispatch(ctx, seq, cmds)
	return nil
}

// ─── Execution ──────────────────────────────────────────────────

// Advance leaves the current step early. It is the only way out of a hold
// step other than Stop and Panic.
func (s *Sequencer) Advance() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.reportLocked(StatusNotRunning, SeverityWarning)
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancelTimer()
	cmds := s.advanceLocked()
	seq := s.panics.Load()
	s.mu.Unlock()

	s.dispatch(context.Background(), seq, cmds)
	return nil
}

// Stop ends the running plan without touching any valve. The sent plan
// stays live and can be run again.
func (s *Sequencer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		s.reportLocked(StatusNotRunning, SeverityWarning)
		return ErrNotRunning
	}
	s.cancelTimer()
	s.finishLocked(RunStopped, StatusStopped, SeverityWarning)
	return nil
}

// Panic closes every valve and aborts whatever is in progress. It always
// succeeds locally; the controller is told afterwards and a failed
// acknowledgement only produces a warning.
func (s *Sequencer) Panic(ctx context.Context) {
	s.cancelTimer()
	s.mu.Lock()
	s.cancelTimer()

	s.panics.Add(1)
	s.epoch++
	wasRunning := s.state == StateRunning

	s.sent = nil
	s.running = nil
	s.current = 0
	s.holding = false

	closed := s.valves.CloseAll()
	if wasRunning {
		s.endRunLocked(RunAborted)
	}
	s.setStateLocked(StateAborted)
	s.reportLocked(StatusPanic, SeverityError)
	s.logger.Warn("panic: all valves closed", "closed", closed, "was_running", wasRunning)
	s.mu.Unlock()

	if err := s.commands.SendPanic(ctx); err != nil {
		s.logger.Error("panic not acknowledged by controller", "error", err)
		s.mu.Lock()
		s.reportLocked(fmt.Sprintf(statusSinkFailFormat, "PANIC", err), SeverityWarning)
		s.mu.Unlock()
	}
}

// tick is the timer callback for generation gen.
func (s *Sequencer) tick(gen uint64) {
	s.mu.Lock()
	if s.gen.Load() != gen || s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	cmds := s.advanceLocked()
	seq := s.panics.Load()
	s.mu.Unlock()

	s.dispatch(context.Background(), seq, cmds)
}

func (s *Sequencer) advanceLocked() []ValveAction {
	next := s.current + 1
	if next >= s.running.StepCount() {
		s.finishLocked(RunCompleted, StatusComplete, SeveritySuccess)
		return nil
	}
	return s.enterStepLocked(next)
}

// enterStepLocked applies step i of the running plan as one unit and
// schedules what follows. It returns the actions to forward to the controller.
func (s *Sequencer) enterStepLocked(i int) []ValveAction {
	step := s.running.steps[i]
	s.current = i

	for _, a := range step.Actions {
		if _, err := s.valves.Set(a.Valve, a.Action.Opens()); err != nil {
			s.logger.Error("applying step action", "step", step.Position, "valve", a.Valve, "error", err)
		}
	}
	if s.run != nil && step.Position > s.run.StepsReached {
		s.run.StepsReached = step.Position
	}

	n := s.running.StepCount()
	if step.Hold {
		s.holding = true
		s.reportLocked(fmt.Sprintf(statusHoldFormat, step.Position, n), SeverityInfo)
	} else {
		s.holding = false
		s.reportLocked(fmt.Sprintf(statusStepFormat, step.Position, n, step.DurationMS), SeverityInfo)
		s.armTimer(step.Delay())
	}

	return append([]ValveAction(nil), step.Actions...)
}

func (s *Sequencer) finishLocked(outcome RunStatus, msg string, severity Severity) {
	s.running = nil
	s.current = 0
	s.holding = false
	s.endRunLocked(outcome)
	s.setStateLocked(StateComplete)
	s.reportLocked(msg, severity)
}

// ─── Manual control ─────────────────────────────────────────────

// SetValve drives one valve by hand and forwards the command to the
// controller. It returns the previous state. The local state changes even
// when the controller cannot be reached.
func (s *Sequencer) SetValve(ctx context.Context, name string, open bool) (bool, error) {
	s.mu.Lock()
	prev, err := s.valves.Set(name, open)
	if err != nil {
		s.reportLocked(err.Error(), SeverityWarning)
		s.mu.Unlock()
		return false, err
	}
	seq := s.panics.Load()
	s.mu.Unlock()

	if err := s.dispatch(ctx, seq, []ValveAction{{Valve: name, Action: valve.ActionFor(open)}}); err != nil {
		return prev, err
	}
	return prev, nil
}

// Toggle flips one valve by hand and returns its new state.
func (s *Sequencer) Toggle(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	cur, err := s.valves.Get(name)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	if _, err := s.SetValve(ctx, name, !cur); err != nil {
		return !cur, err
	}
	return !cur, nil
}

// dispatch forwards valve commands in order. Commands captured before a
// panic are dropped.
func (s *Sequencer) dispatch(ctx context.Context, seq uint64, cmds []ValveAction) error {
	if len(cmds) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var firstErr error
	for _, a := range cmds {
		if s.panics.Load() != seq {
			s.logger.Debug("dropping valve command after panic", "valve", a.Valve, "action", a.Action)
			return firstErr
		}
		if err := s.commands.SendValveCommand(ctx, a.Valve, a.Action); err != nil {
			s.logger.Warn("valve command failed", "valve", a.Valve, "action", a.Action, "error", err)
			s.mu.Lock()
			s.reportLocked(fmt.Sprintf(statusSinkFailFormat, string(a.Action)+" "+a.Valve, err), SeverityWarning)
			s.mu.Unlock()
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
			}
		}
	}
	return firstErr
}

// ─── Introspection ──────────────────────────────────────────────

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Valves returns the valve vector in registration order.
func (s *Sequencer) Valves() []valve.Status {
	return s.valves.Snapshot()
}

// OpenCount returns how many valves are open.
func (s *Sequencer) OpenCount() int {
	return s.valves.OpenCount()
}

// Status returns a snapshot of the sequencer.
func (s *Sequencer) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:      s.state,
		Sent:       s.sent != nil,
		Holding:    s.holding,
		Authored:   len(s.authored),
		Valves:     s.valves.Snapshot(),
		LastChange: s.lastChange,
	}
	switch {
	case s.running != nil:
		snap.Step = s.current + 1
		snap.StepCount = s.running.StepCount()
	case s.sent != nil:
		snap.StepCount = s.sent.StepCount()
	}
	if s.run != nil {
		snap.RunID = s.run.ID
	}
	return snap
}

// ─── Internals ──────────────────────────────────────────────────

func (s *Sequencer) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.logger.Debug("sequencer state changed", "from", s.state, "to", st)
	s.state = st
	s.lastChange = s.clock.Now()
}

func (s *Sequencer) reportLocked(msg string, severity Severity) {
	s.events.OnSequenceStatus(msg, severity)
}

func (s *Sequencer) armTimer(d time.Duration) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen.Add(1)
	s.timer = s.clock.AfterFunc(d, func() { s.tick(gen) })
}

func (s *Sequencer) cancelTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	s.gen.Add(1)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sequencer) startRunLocked(ctx context.Context, plan *Plan) {
	s.run = &Run{
		ID:        "run-" + uuid.NewString()[:8],
		StartedAt: s.clock.Now().UTC(),
		Status:    RunRunning,
		StepCount: plan.StepCount(),
		Plan:      plan.Payload(),
	}
	if s.runs == nil {
		return
	}
	rec := *s.run
	if err := s.runs.CreateRun(context.WithoutCancel(ctx), &rec); err != nil {
		s.logger.Warn("recording run start", "run_id", rec.ID, "error", err)
	}
}

func (s *Sequencer) endRunLocked(outcome RunStatus) {
	if s.run == nil {
		return
	}
	ended := s.clock.Now().UTC()
	s.run.EndedAt = &ended
	s.run.Status = outcome
	s.logger.Info("sequence run ended", "run_id", s.run.ID, "status", outcome, "steps_reached", s.run.StepsReached)

	if s.runs != nil {
		rec := *s.run
		if err := s.runs.UpdateRun(context.Background(), &rec); err != nil {
			s.logger.Warn("recording run end", "run_id", rec.ID, "error", err)
		}
	}
	s.run = nil
}
