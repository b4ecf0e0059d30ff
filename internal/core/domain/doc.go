// Package domain defines the core domain models for stillpoint.
//
// Domain models are pure value objects without any IO dependencies.
// This package contains:
//
//   - ProcessState: the counter and fixed-size payload that survive restarts
//   - RunID: ULID identifying the process instance that wrote a checkpoint
//   - Errors: coded domain errors for the checkpoint taxonomy
//     (open, write, read, corruption)
package domain
