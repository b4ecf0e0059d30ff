package config

import (
	"io"
	"log/slog"

	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/runner"
	"github.com/yndnr/stillpoint/internal/storage"
	"github.com/yndnr/stillpoint/internal/storage/checkpoint"
	"github.com/yndnr/stillpoint/internal/telemetry/logger"
	"github.com/yndnr/stillpoint/internal/telemetry/metric"
)

// ToStorageConfig converts the checkpoint section into a storage engine
// configuration.
func ToStorageConfig(cfg *Config, runID domain.RunID, log *slog.Logger, metrics *metric.Registry) (storage.Config, error) {
	algo, err := checkpoint.ParseChecksumAlgorithm(cfg.Checkpoint.Checksum)
	if err != nil {
		return storage.Config{}, domain.ErrInvalidConfig.WithCause(err)
	}

	sc := storage.DefaultConfig(cfg.Checkpoint.Path)
	sc.Checkpoint.PayloadSize = cfg.Checkpoint.PayloadSize
	sc.Checkpoint.Checksum = algo
	sc.Checkpoint.Retry = checkpoint.RetryConfig{
		MaxAttempts:    cfg.Checkpoint.Retry.MaxAttempts,
		InitialBackoff: cfg.Checkpoint.Retry.InitialBackoff,
		MaxBackoff:     cfg.Checkpoint.Retry.MaxBackoff,
	}
	sc.Checkpoint.RunID = runID
	sc.Checkpoint.Logger = log
	sc.Checkpoint.Metrics = metrics

	sc.FallbackEnabled = cfg.Checkpoint.Fallback.Enabled
	sc.KV.Dir = cfg.Checkpoint.Fallback.Dir

	return sc, nil
}

// ToLoggerConfig converts the log section into a logger configuration.
func ToLoggerConfig(cfg *Config, out io.Writer) logger.Config {
	return logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	}
}

// ToRunnerConfig converts the work and shutdown settings into a work loop
// configuration.
func ToRunnerConfig(cfg *Config) runner.Config {
	return runner.Config{
		Interval:        cfg.Checkpoint.Interval,
		MaxAge:          cfg.Checkpoint.MaxAge,
		Pace:            cfg.Work.Pace,
		MaxUnits:        cfg.Work.MaxUnits,
		SaveOnShutdown:  cfg.Checkpoint.SaveOnShutdown,
		ShutdownTimeout: cfg.Shutdown.Timeout,
	}
}
