package checkpoint

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Store.Read when no checkpoint exists.
	ErrNotFound = errors.New("checkpoint: not found")

	// ErrReadOnly is returned by the mutating methods of a store opened
	// read-only.
	ErrReadOnly = errors.New("checkpoint: store is read-only")
)

// Store persists exactly one encoded record.
//
// Write must be all-or-nothing: once it returns nil the new record is
// durable, and if it fails the previously stored record is still readable.
// Read returns ErrNotFound when nothing has been stored; other failures are
// domain.ErrCheckpointRead.
type Store interface {
	// Name identifies the store in logs and metrics.
	Name() string

	Write(ctx context.Context, record []byte) error
	Read(ctx context.Context) ([]byte, error)

	// Remove deletes the stored record. Removing a missing record is not
	// an error.
	Remove(ctx context.Context) error

	Close() error
}
