// Package valve holds the authoritative open/closed record for every valve
// on the bench.
//
// A State is created once from the configured valve list. Names are unique
// and their registration order is the order of every snapshot. Each change
// that actually flips a valve produces exactly one Observer notification
// carrying the full ordered vector; writing the current value is a no-op.
//
// State is safe for concurrent use. The sequencer still serialises its own
// read-modify-write sequences around it so that a plan step is applied as
// one unit.
package valve
