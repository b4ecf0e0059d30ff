package checkpoint

import "github.com/yndnr/stillpoint/internal/core/domain"

// OutcomeKind is the startup recovery decision.
type OutcomeKind int

const (
	// OutcomeColdStart: no checkpoint exists; start from a zeroed state.
	OutcomeColdStart OutcomeKind = iota + 1
	// OutcomeRestored: a valid checkpoint was read back.
	OutcomeRestored
	// OutcomeFatal: a checkpoint exists but cannot be trusted.
	OutcomeFatal
)

// String returns the lowercase name used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeColdStart:
		return "cold_start"
	case OutcomeRestored:
		return "restored"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of Manager.Load.
//
// State is set for ColdStart and Restored, Info only for Restored, and Err
// only for Fatal (a domain.ErrCheckpointRead or domain.ErrCheckpointCorrupt).
type Outcome struct {
	Kind  OutcomeKind
	State *domain.ProcessState
	Info  *Info
	Err   error
}

// Fatal reports whether the process must not proceed.
func (o Outcome) Fatal() bool {
	return o.Kind == OutcomeFatal
}
