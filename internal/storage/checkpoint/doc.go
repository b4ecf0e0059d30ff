// Package checkpoint persists the process state and restores it at
// startup.
//
// A checkpoint is one fixed-size record:
//
//	[magic:4 "SPCK"][version:2][algo:1][reserved:1][payload_size:4]
//	[run_id:16][counter:8][saved_at_ms:8]
//	[payload:N]
//	[checksum:32 SHA-256 or murmur3-128 of all bytes above]
//
// All integers are little-endian. The record size is 76+N bytes, so a
// truncated file is detected by length alone; the checksum catches
// records of the right length with damaged contents.
//
// Save protocol (FileStore):
//
//  1. Write the whole record to <path>.tmp in one call
//  2. fsync the temp file
//  3. Rename it over <path>
//  4. fsync the directory (best effort)
//
// Recovery decision (Manager.Load):
//
//   - no checkpoint anywhere: cold start with a zeroed state
//   - valid record: restored
//   - unreadable, truncated, malformed or checksum mismatch: fatal
package checkpoint
