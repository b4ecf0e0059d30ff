package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewProcessState(t *testing.T) {
	s := NewProcessState(DefaultPayloadSize)
	if s.Counter != 0 {
		t.Errorf("Counter = %d, want 0", s.Counter)
	}
	if len(s.Payload) != DefaultPayloadSize {
		t.Errorf("len(Payload) = %d, want %d", len(s.Payload), DefaultPayloadSize)
	}
	if !s.IsZero() {
		t.Error("new state should be zero")
	}
}

func TestProcessState_CloneIsDeep(t *testing.T) {
	s := NewProcessState(8)
	s.Counter = 5
	s.Payload[0] = 'A'

	c := s.Clone()
	if !c.Equal(s) {
		t.Fatal("clone should equal original")
	}

	c.Payload[0] = 'B'
	c.Counter = 6
	if s.Payload[0] != 'A' || s.Counter != 5 {
		t.Error("mutating clone changed original")
	}
	if c.Equal(s) {
		t.Error("clone should differ after mutation")
	}
}

func TestProcessState_IsZero(t *testing.T) {
	s := NewProcessState(4)
	s.Payload[3] = 1
	if s.IsZero() {
		t.Error("state with a non-zero payload byte is not zero")
	}
}

func TestProcessState_Validate(t *testing.T) {
	s := NewProcessState(16)
	if err := s.Validate(16); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := s.Validate(32); err == nil {
		t.Error("expected payload size mismatch error")
	}
	s.Counter = -1
	if err := s.Validate(16); err == nil || !strings.Contains(err.Error(), "negative") {
		t.Errorf("expected negative counter error, got %v", err)
	}
}

func TestRunID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id, err := NewRunID()
	if err != nil {
		t.Fatalf("NewRunID: %v", err)
	}
	if id.IsZero() {
		t.Fatal("run id should not be zero")
	}
	if len(id.String()) != 26 {
		t.Errorf("len(String()) = %d, want 26", len(id.String()))
	}
	if id.Time().Before(before) {
		t.Errorf("Time() = %v, want after %v", id.Time(), before)
	}

	parsed, err := ParseRunID(id.String())
	if err != nil {
		t.Fatalf("ParseRunID: %v", err)
	}
	if parsed != id {
		t.Errorf("ParseRunID = %v, want %v", parsed, id)
	}

	var zero RunID
	if zero.String() != "" {
		t.Errorf("zero String() = %q, want empty", zero.String())
	}
}
