// Package output renders command results for the stillpoint CLI.
//
// Three formats are supported: an aligned table for people, and JSON or
// YAML for scripts. Struct fields are named by their json tag; a
// `table:"-"` tag hides a field from the table view only.
package output
