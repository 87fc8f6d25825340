// Package sequence compiles operator-authored valve sequences and drives
// them against the bench controller.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                 Sequencer (sequencer.go)                  │
//	│                                                          │
//	│   authored []Step ──Compile──▶ Plan ──Send──▶ sent plan   │
//	│                                              │            │
//	│                                             Run           │
//	│                                              ▼            │
//	│   Clock.AfterFunc ──tick──▶ apply step ──▶ valve.State    │
//	│                                │                          │
//	│                                ├──▶ CommandSink (per step) │
//	│                                └──▶ EventSink (status)     │
//	└──────────────────────────────────────────────────────────┘
//
// # States
//
//	idle ──edit──▶ plan_edited ──send──▶ sent ──run──▶ running
//	                    ▲                               │
//	                    └────edit──── complete ◀──tick/stop
//	any state ──panic──▶ aborted
//
// Send and Run wait for the controller to acknowledge before the state
// changes. The wait happens outside the sequencer lock; an edit or panic
// that lands while an acknowledgement is outstanding supersedes it.
//
// # Thread Safety
//
// Timer callbacks arrive on their own goroutines, so one mutex guards the
// state, the plans and every valve mutation. Timers carry a generation
// number and stale callbacks are dropped. Panic cancels the timer before
// taking the lock and again after, so a tick that is already waiting on the
// lock can never advance the plan.
//
// # Usage
//
//	seq, err := sequence.NewSequencer(cfg.ValveNames(), sink, events)
//	if err := seq.SetSteps(steps); err != nil { ... }
//	if _, err := seq.Send(ctx); err != nil { ... }
//	if err := seq.Run(ctx); err != nil { ... }
//	seq.Panic(ctx) // never fails
package sequence
