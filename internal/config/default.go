package config

import (
	"time"

	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/runner"
	"github.com/yndnr/stillpoint/internal/storage/checkpoint"
)

// Default configuration values.
const (
	DefaultPath           = checkpoint.DefaultPath
	DefaultInterval       = runner.DefaultInterval
	DefaultPayloadSize    = domain.DefaultPayloadSize
	DefaultChecksum       = "sha256"
	DefaultMaxAttempts    = checkpoint.DefaultMaxAttempts
	DefaultInitialBackoff = checkpoint.DefaultInitialBackoff
	DefaultMaxBackoff     = checkpoint.DefaultMaxBackoff
	DefaultFallbackDir    = "checkpoint.kv"

	DefaultPace            = time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsAddr = "127.0.0.1:9464"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Checkpoint: CheckpointSection{
			Path:           DefaultPath,
			Interval:       DefaultInterval,
			PayloadSize:    DefaultPayloadSize,
			Checksum:       DefaultChecksum,
			SaveOnShutdown: true,
			Retry: RetrySection{
				MaxAttempts:    DefaultMaxAttempts,
				InitialBackoff: DefaultInitialBackoff,
				MaxBackoff:     DefaultMaxBackoff,
			},
			Fallback: FallbackSection{
				Dir: DefaultFallbackDir,
			},
		},
		Work: WorkSection{
			Pace: DefaultPace,
		},
		Shutdown: ShutdownSection{
			Timeout: DefaultShutdownTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
	}
}
