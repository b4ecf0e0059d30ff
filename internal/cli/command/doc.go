// Package command defines the stillpoint CLI using urfave/cli/v2.
//
//   - run: recover the checkpoint and drive the work loop until a signal
//   - inspect: decode every checkpoint store and print its header
//   - verify: report the recovery decision run would make
//   - reset: remove all checkpoints so the next run cold-starts
//   - config: print the effective configuration
//   - version: print build information
//
// Commands that find an unusable checkpoint exit 1.
package command
