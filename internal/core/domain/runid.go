package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunID identifies one process instance. It is stamped into every
// checkpoint record so an operator can tell which run wrote it.
type RunID [16]byte

// NewRunID generates a new run ID using ULID.
func NewRunID() (RunID, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return RunID{}, ErrInternal.WithCause(err)
	}
	return RunID(id), nil
}

// ParseRunID parses the string form produced by RunID.String.
func ParseRunID(s string) (RunID, error) {
	id, err := ulid.Parse(strings.ToUpper(s))
	if err != nil {
		return RunID{}, err
	}
	return RunID(id), nil
}

// String returns the lowercase ULID text form, or "" for the zero value.
func (r RunID) String() string {
	if r.IsZero() {
		return ""
	}
	return strings.ToLower(ulid.ULID(r).String())
}

// IsZero reports whether the run ID is unset.
func (r RunID) IsZero() bool {
	return r == RunID{}
}

// Time returns the creation time encoded in the run ID.
func (r RunID) Time() time.Time {
	return ulid.Time(ulid.ULID(r).Time())
}
