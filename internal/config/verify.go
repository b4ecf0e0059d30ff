package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/storage/checkpoint"
	"github.com/yndnr/stillpoint/internal/telemetry/logger"
)

// Verify validates the configuration. All problems are reported together
// as a domain.ErrInvalidConfig.
func Verify(cfg *Config) error {
	if cfg == nil {
		return domain.ErrInvalidConfig.WithDetails("config is nil")
	}

	errs := []error{
		verifyCheckpoint(&cfg.Checkpoint),
		verifyWork(&cfg.Work),
		verifyShutdown(&cfg.Shutdown),
		verifyLog(&cfg.Log),
		verifyMetrics(&cfg.Metrics),
	}
	if err := errors.Join(errs...); err != nil {
		return domain.ErrInvalidConfig.WithCause(err)
	}
	return nil
}

func verifyCheckpoint(cfg *CheckpointSection) error {
	var errs []error
	if cfg.Path == "" {
		errs = append(errs, errors.New("checkpoint.path is required"))
	}
	if cfg.Interval < 1 {
		errs = append(errs, errors.New("checkpoint.interval must be at least 1"))
	}
	if cfg.PayloadSize < 1 || cfg.PayloadSize > domain.MaxPayloadSize {
		errs = append(errs, fmt.Errorf("checkpoint.payload_size must be in [1, %d]", domain.MaxPayloadSize))
	}
	if _, err := checkpoint.ParseChecksumAlgorithm(cfg.Checksum); err != nil {
		errs = append(errs, fmt.Errorf("checkpoint.checksum: %w", err))
	}
	if cfg.MaxAge < 0 {
		errs = append(errs, errors.New("checkpoint.max_age must not be negative"))
	}
	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("checkpoint.retry.max_attempts must be at least 1"))
	}
	if cfg.Retry.InitialBackoff < 0 || cfg.Retry.MaxBackoff < 0 {
		errs = append(errs, errors.New("checkpoint.retry backoff must not be negative"))
	}
	if cfg.Retry.MaxBackoff > 0 && cfg.Retry.InitialBackoff > cfg.Retry.MaxBackoff {
		errs = append(errs, errors.New("checkpoint.retry.initial_backoff must not exceed max_backoff"))
	}
	if cfg.Fallback.Enabled && cfg.Fallback.Dir == "" {
		errs = append(errs, errors.New("checkpoint.fallback.dir is required when the fallback is enabled"))
	}
	return errors.Join(errs...)
}

func verifyWork(cfg *WorkSection) error {
	if cfg.Pace < 0 {
		return errors.New("work.pace must not be negative")
	}
	if cfg.MaxUnits < 0 {
		return errors.New("work.max_units must not be negative")
	}
	return nil
}

func verifyShutdown(cfg *ShutdownSection) error {
	if cfg.Timeout <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "", "json", "text", "console":
		return nil
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
}

func verifyMetrics(cfg *MetricsSection) error {
	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("metrics.addr: %w", err)
	}
	return nil
}
