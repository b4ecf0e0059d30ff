package config

import "time"

// Config is the root configuration for stillpoint.
type Config struct {
	Checkpoint CheckpointSection `koanf:"checkpoint" json:"checkpoint" yaml:"checkpoint"`
	Work       WorkSection       `koanf:"work" json:"work" yaml:"work"`
	Shutdown   ShutdownSection   `koanf:"shutdown" json:"shutdown" yaml:"shutdown"`
	Log        LogSection        `koanf:"log" json:"log" yaml:"log"`
	Metrics    MetricsSection    `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// CheckpointSection configures persistence of the process state.
type CheckpointSection struct {
	// Path is the checkpoint file.
	Path string `koanf:"path" json:"path" yaml:"path"`

	// Interval is the number of work units between saves.
	Interval int `koanf:"interval" json:"interval" yaml:"interval"`

	// PayloadSize is the fixed payload length in bytes. Changing it makes
	// an existing checkpoint unloadable.
	PayloadSize int `koanf:"payload_size" json:"payload_size" yaml:"payload_size"`

	// Checksum is the record checksum algorithm: sha256 or murmur3.
	Checksum string `koanf:"checksum" json:"checksum" yaml:"checksum"`

	// SaveOnShutdown writes a final checkpoint when the loop is cancelled.
	SaveOnShutdown bool `koanf:"save_on_shutdown" json:"save_on_shutdown" yaml:"save_on_shutdown"`

	// MaxAge also triggers a save when this much time has passed since the
	// last one. Zero disables it.
	MaxAge time.Duration `koanf:"max_age" json:"max_age" yaml:"max_age"`

	Retry    RetrySection    `koanf:"retry" json:"retry" yaml:"retry"`
	Fallback FallbackSection `koanf:"fallback" json:"fallback" yaml:"fallback"`
}

// RetrySection configures retries of a failed checkpoint write.
type RetrySection struct {
	MaxAttempts    int           `koanf:"max_attempts" json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" json:"max_backoff" yaml:"max_backoff"`
}

// FallbackSection configures the secondary checkpoint location.
type FallbackSection struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`

	// Dir is the Badger directory. Relative paths are resolved against
	// the checkpoint file's directory.
	Dir string `koanf:"dir" json:"dir" yaml:"dir"`
}

// WorkSection configures the work loop.
type WorkSection struct {
	// Pace is the minimum time between work units. Zero runs unpaced.
	Pace time.Duration `koanf:"pace" json:"pace" yaml:"pace"`

	// MaxUnits stops the loop after this many units in this run. Zero
	// runs until cancelled.
	MaxUnits int64 `koanf:"max_units" json:"max_units" yaml:"max_units"`
}

// ShutdownSection configures graceful shutdown.
type ShutdownSection struct {
	// Timeout bounds the final save and other cleanup.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" json:"addr" yaml:"addr"`
}
