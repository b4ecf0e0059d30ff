// Package storage wires the checkpoint stores together.
//
// The engine always owns a checkpoint.FileStore as the primary location.
// When enabled, an embedded Badger database receives the record whenever
// the file cannot be written. Recovery reads both and resumes from the
// higher counter.
package storage
