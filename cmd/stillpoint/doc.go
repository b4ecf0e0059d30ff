// Command stillpoint runs a counter-driven work loop whose progress
// survives crashes.
//
// At startup it restores the last checkpoint, or starts from zero when
// none exists, and refuses to start (exit 1) when the checkpoint is
// present but unreadable or corrupt. While running it saves the state
// every checkpoint.interval units. SIGINT or SIGTERM stops the loop at the
// next unit boundary, writes a final checkpoint and exits 0.
//
// Usage:
//
//	stillpoint [--config FILE] [--path FILE] run [--interval K] [--pace D]
//	stillpoint inspect -o json
//	stillpoint verify
//	stillpoint reset --force
package main
