// Package config provides the stillpoint configuration.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - convert.go: translation into component configurations
//   - load.go: loading through internal/infra/confloader
//
// Configuration comes from a YAML file, STILLPOINT_* environment
// variables and command-line flags, in increasing priority.
package config
