// Package service provides domain services for stillpoint.
//
// This package contains:
//
//   - StateStore: owner of the in-memory ProcessState, exposing Advance
//     for the work loop and Snapshot for the checkpoint manager
//   - Mutator: the opaque unit of work applied between checkpoints
//   - CadencePolicy: when a checkpoint is due (every N units, optional
//     maximum age)
//
// Nothing here performs IO. The StateStore is single-owner and not safe
// for concurrent use.
package service
