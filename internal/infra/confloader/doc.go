// Package confloader loads configuration with koanf.
//
// Sources, lowest to highest priority:
//
//  1. Defaults already present in the target struct
//  2. YAML configuration file
//  3. STILLPOINT_* environment variables
//  4. Overrides (command-line flags)
//
// Watcher reports changes to the configuration file so that settings
// which are safe to change at runtime, such as the log level, can be
// reapplied without a restart.
package confloader
