// Package service provides domain services for stillpoint.
//
// StateStore owns the authoritative ProcessState for the work loop.
package service

import (
	"github.com/yndnr/stillpoint/internal/core/domain"
)

// Mutator is one opaque unit of work applied to the payload.
//
// The counter passed in is the value after the increment for this unit.
type Mutator interface {
	Mutate(counter int64, payload []byte)
}

// MutatorFunc adapts a plain function to the Mutator interface.
type MutatorFunc func(counter int64, payload []byte)

// Mutate calls f(counter, payload).
func (f MutatorFunc) Mutate(counter int64, payload []byte) {
	f(counter, payload)
}

// MarkMutator is the default work unit. It marks payload[0] with 'A' and
// stamps the low byte of the counter at a rotating position.
var MarkMutator = MutatorFunc(func(counter int64, payload []byte) {
	if len(payload) == 0 {
		return
	}
	payload[0] = 'A'
	if len(payload) > 1 {
		idx := 1 + int(counter%int64(len(payload)-1))
		payload[idx] = byte(counter)
	}
})

// StateStore holds the authoritative ProcessState.
//
// It has a single owner and does no locking: the work loop mutates it and
// hands Snapshot() copies to the checkpoint manager on the same goroutine.
type StateStore struct {
	state *domain.ProcessState
}

// NewStateStore creates a store around an initial state (zeroed default or
// the result of a successful load). The store takes ownership of initial.
func NewStateStore(initial *domain.ProcessState) *StateStore {
	if initial == nil {
		initial = domain.NewProcessState(domain.DefaultPayloadSize)
	}
	return &StateStore{state: initial}
}

// Advance completes one work unit: the counter is incremented first, then
// m may touch payload bytes. It returns the new counter value.
func (s *StateStore) Advance(m Mutator) int64 {
	s.state.Counter++
	if m != nil {
		m.Mutate(s.state.Counter, s.state.Payload)
	}
	return s.state.Counter
}

// Snapshot returns a deep copy of the current state.
func (s *StateStore) Snapshot() *domain.ProcessState {
	return s.state.Clone()
}

// Counter returns the number of completed work units.
func (s *StateStore) Counter() int64 {
	return s.state.Counter
}

// PayloadSize returns the fixed payload length.
func (s *StateStore) PayloadSize() int {
	return len(s.state.Payload)
}
