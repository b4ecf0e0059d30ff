// Package runner executes the checkpointed work loop.
//
// One goroutine owns the state: it loads the checkpoint, advances the
// counter one unit at a time, saves on the configured cadence and, when
// its context is cancelled, writes a final checkpoint under its own
// deadline before returning.
package runner
