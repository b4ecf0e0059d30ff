package service

import "time"

// CadencePolicy decides after each mutation whether a checkpoint is due.
type CadencePolicy interface {
	// ShouldCheckpoint is called with the counter after a mutation and
	// the time of the last successful save (zero if none this run).
	ShouldCheckpoint(counter int64, lastSave time.Time, now time.Time) bool
}

// EveryN checkpoints whenever the counter is a positive multiple of N.
// It is stateless: no skipped or coalesced triggers.
type EveryN struct {
	N int64
}

// ShouldCheckpoint returns counter%N == 0 for positive counters.
func (p EveryN) ShouldCheckpoint(counter int64, _ time.Time, _ time.Time) bool {
	if p.N <= 0 || counter <= 0 {
		return false
	}
	return counter%p.N == 0
}

// MaxAge checkpoints when the last successful save is older than Age.
// A zero lastSave counts from the first call, so a fresh run does not
// save on its very first unit.
type MaxAge struct {
	Age time.Duration

	started time.Time
}

// ShouldCheckpoint reports whether Age has elapsed since lastSave.
func (p *MaxAge) ShouldCheckpoint(_ int64, lastSave time.Time, now time.Time) bool {
	if p.Age <= 0 {
		return false
	}
	ref := lastSave
	if ref.IsZero() {
		if p.started.IsZero() {
			p.started = now
		}
		ref = p.started
	}
	return now.Sub(ref) >= p.Age
}

// AnyOf triggers when any of its policies does.
type AnyOf []CadencePolicy

// ShouldCheckpoint evaluates every policy and ORs the results.
func (a AnyOf) ShouldCheckpoint(counter int64, lastSave time.Time, now time.Time) bool {
	due := false
	for _, p := range a {
		// Evaluate all so stateful policies observe every call.
		if p.ShouldCheckpoint(counter, lastSave, now) {
			due = true
		}
	}
	return due
}

// NewCadence builds the configured policy: every n units, plus an optional
// age limit when maxAge > 0.
func NewCadence(n int64, maxAge time.Duration) CadencePolicy {
	if maxAge <= 0 {
		return EveryN{N: n}
	}
	return AnyOf{EveryN{N: n}, &MaxAge{Age: maxAge}}
}
