package domain

import (
	"bytes"
	"fmt"
)

// DefaultPayloadSize is the payload size used when none is configured.
const DefaultPayloadSize = 1024

// MaxPayloadSize bounds the payload so a record always fits a uint32 length.
const MaxPayloadSize = 64 << 20 // 64MB

// ProcessState is the unit of durable state.
//
// Counter is the number of completed work units and never decreases.
// Payload is fixed-size working data; its length is set once at
// construction and is part of the on-disk record size.
type ProcessState struct {
	Counter int64
	Payload []byte
}

// NewProcessState returns a zeroed state with a payload of the given size.
func NewProcessState(payloadSize int) *ProcessState {
	return &ProcessState{
		Counter: 0,
		Payload: make([]byte, payloadSize),
	}
}

// Clone returns a deep copy of the state.
func (s *ProcessState) Clone() *ProcessState {
	if s == nil {
		return nil
	}
	payload := make([]byte, len(s.Payload))
	copy(payload, s.Payload)
	return &ProcessState{
		Counter: s.Counter,
		Payload: payload,
	}
}

// Equal reports whether two states are identical field for field.
func (s *ProcessState) Equal(other *ProcessState) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Counter == other.Counter && bytes.Equal(s.Payload, other.Payload)
}

// IsZero reports whether the state is the cold-start default.
func (s *ProcessState) IsZero() bool {
	if s.Counter != 0 {
		return false
	}
	for _, b := range s.Payload {
		if b != 0 {
			return false
		}
	}
	return true
}

// Validate checks the state against the expected payload size.
func (s *ProcessState) Validate(payloadSize int) error {
	if s.Counter < 0 {
		return ErrInternal.WithDetails(fmt.Sprintf("negative counter %d", s.Counter))
	}
	if len(s.Payload) != payloadSize {
		return ErrInternal.WithDetails(fmt.Sprintf("payload size %d, want %d", len(s.Payload), payloadSize))
	}
	return nil
}
