package checkpoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/infra/backoff"
	"github.com/yndnr/stillpoint/internal/telemetry/metric"
)

// Default configuration values.
const (
	DefaultPath           = "checkpoint.dat"
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 50 * time.Millisecond
	DefaultMaxBackoff     = time.Second
)

// RetryConfig controls how a failed primary write is retried.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Config configures the checkpoint manager.
type Config struct {
	// Path is the checkpoint file. Ignored when Primary is set.
	Path string

	// PayloadSize is the fixed payload length of every record.
	PayloadSize int

	Checksum ChecksumAlgorithm
	Retry    RetryConfig

	// RunID is stamped into every record written by this manager.
	RunID domain.RunID

	// Primary overrides the default FileStore at Path.
	Primary Store

	// Fallback is an optional secondary location used when the primary
	// keeps failing.
	Fallback Store

	Logger  *slog.Logger
	Metrics *metric.Registry

	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the default manager configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		PayloadSize: domain.DefaultPayloadSize,
		Checksum:    ChecksumSHA256,
		Retry: RetryConfig{
			MaxAttempts:    DefaultMaxAttempts,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
		},
		Logger: slog.Default(),
	}
}

// Info contains metadata about a stored checkpoint.
type Info struct {
	Store       string    `json:"store" yaml:"store"`
	Counter     int64     `json:"counter" yaml:"counter"`
	PayloadSize int       `json:"payload_size" yaml:"payload_size"`
	Size        int       `json:"size" yaml:"size"`
	Algorithm   string    `json:"algorithm" yaml:"algorithm"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
	RunID       string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	SavedAt     time.Time `json:"saved_at" yaml:"saved_at"`
}

func newInfo(store string, rec *Record, size int) *Info {
	return &Info{
		Store:       store,
		Counter:     rec.State.Counter,
		PayloadSize: len(rec.State.Payload),
		Size:        size,
		Algorithm:   rec.Algorithm.String(),
		Checksum:    hex.EncodeToString(rec.Checksum[:]),
		RunID:       rec.RunID.String(),
		SavedAt:     rec.SavedAt,
	}
}

// Manager serializes ProcessState to its stores and restores it at
// startup. It is not safe for concurrent use; the work loop owns it.
type Manager struct {
	cfg      Config
	primary  Store
	fallback Store
	strategy backoff.Strategy
	logger   *slog.Logger
	metrics  *metric.Registry
	now      func() time.Time
}

// NewManager creates a checkpoint manager.
func NewManager(cfg Config) (*Manager, error) {
	applyDefaults(&cfg)
	if cfg.PayloadSize < 1 || cfg.PayloadSize > domain.MaxPayloadSize {
		return nil, fmt.Errorf("checkpoint: payload size %d out of range [1, %d]", cfg.PayloadSize, domain.MaxPayloadSize)
	}
	if !cfg.Checksum.valid() {
		return nil, fmt.Errorf("checkpoint: invalid checksum algorithm %s", cfg.Checksum)
	}

	primary := cfg.Primary
	if primary == nil {
		fs, err := NewFileStore(cfg.Path, WithFileLogger(cfg.Logger))
		if err != nil {
			return nil, err
		}
		primary = fs
	}

	return &Manager{
		cfg:      cfg,
		primary:  primary,
		fallback: cfg.Fallback,
		strategy: backoff.NewExponential(cfg.Retry.InitialBackoff, cfg.Retry.MaxBackoff),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.PayloadSize == 0 {
		cfg.PayloadSize = domain.DefaultPayloadSize
	}
	if cfg.Checksum == 0 {
		cfg.Checksum = ChecksumSHA256
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Save writes state as the new checkpoint.
//
// The primary store is retried with backoff; if it still fails with an
// open or write error and a fallback store is configured, the record is
// written there instead. The
// returned error is domain.ErrCheckpointOpen or domain.ErrCheckpointWrite.
// Save never retries beyond its budget and never terminates the process;
// the caller keeps running with the state in memory.
func (m *Manager) Save(ctx context.Context, state *domain.ProcessState) (*Info, error) {
	if state == nil {
		return nil, domain.ErrInternal.WithDetails("save: nil state")
	}
	if err := state.Validate(m.cfg.PayloadSize); err != nil {
		return nil, err
	}

	start := m.now()
	rec := &Record{
		Algorithm: m.cfg.Checksum,
		RunID:     m.cfg.RunID,
		SavedAt:   start,
		State:     state,
	}
	buf, err := EncodeRecord(rec)
	if err != nil {
		return nil, err
	}

	m.logger.Info("saving checkpoint",
		"store", m.primary.Name(),
		"counter", state.Counter)

	err = backoff.Retry(ctx, m.cfg.Retry.MaxAttempts, m.strategy,
		func(attempt int) error {
			return m.writeOnce(ctx, m.primary, buf, state.Counter, attempt)
		},
		func(attempt int, err error, wait time.Duration) {
			m.metrics.ObserveRetry()
			m.logger.Warn("checkpoint write failed, retrying",
				"store", m.primary.Name(),
				"counter", state.Counter,
				"attempt", attempt,
				"backoff", wait,
				"error", err)
		})
	if err == nil {
		m.logger.Info("checkpoint saved",
			"store", m.primary.Name(),
			"counter", state.Counter,
			"size", len(buf),
			"elapsed", time.Since(start))
		return newInfo(m.primary.Name(), rec, len(buf)), nil
	}

	if m.fallback == nil || !domain.IsSaveError(err) {
		m.logger.Error("checkpoint save failed, state kept in memory only",
			"store", m.primary.Name(),
			"counter", state.Counter,
			"error", err)
		return nil, err
	}

	m.logger.Warn("primary checkpoint store failed, writing to fallback",
		"primary", m.primary.Name(),
		"fallback", m.fallback.Name(),
		"counter", state.Counter,
		"error", err)

	if ferr := m.writeOnce(ctx, m.fallback, buf, state.Counter, 1); ferr != nil {
		m.logger.Error("checkpoint save failed on all stores, state kept in memory only",
			"counter", state.Counter,
			"primary_error", err,
			"fallback_error", ferr)
		return nil, err
	}

	m.logger.Info("checkpoint saved",
		"store", m.fallback.Name(),
		"counter", state.Counter,
		"size", len(buf),
		"elapsed", time.Since(start))
	return newInfo(m.fallback.Name(), rec, len(buf)), nil
}

func (m *Manager) writeOnce(ctx context.Context, s Store, buf []byte, counter int64, attempt int) error {
	start := time.Now()
	err := s.Write(ctx, buf)
	m.metrics.ObserveSave(s.Name(), err, time.Since(start), counter, len(buf))
	if err != nil {
		m.logger.Debug("checkpoint write attempt failed",
			"store", s.Name(),
			"attempt", attempt,
			"error", err)
	}
	return err
}

// Load decides how the process starts.
//
// It never returns a state it could not fully validate. Any unreadable or
// corrupt record on any store yields OutcomeFatal: resuming from unknown
// data is worse than stopping for an operator. When both stores hold a
// valid record, the one with the higher counter wins.
//
// Cancelling ctx does not interrupt recovery: a shutdown request during
// startup must not turn a valid checkpoint into a fatal outcome.
func (m *Manager) Load(ctx context.Context) Outcome {
	ctx = context.WithoutCancel(ctx)
	m.logger.Info("checkpoint recovery started", "store", m.primary.Name())
	m.cleanupTemp(m.primary)
	if m.fallback != nil {
		m.cleanupTemp(m.fallback)
	}

	var best *loaded
	for _, s := range m.stores() {
		l, err := m.loadStore(ctx, s)
		if err != nil {
			m.logger.Error("checkpoint unusable, refusing to start",
				"store", s.Name(),
				"error", err)
			m.metrics.ObserveRecovery(OutcomeFatal.String(), 0)
			return Outcome{Kind: OutcomeFatal, Err: err}
		}
		if l == nil {
			continue
		}
		if best == nil || l.info.Counter > best.info.Counter {
			best = l
		}
	}

	if best == nil {
		m.logger.Info("no checkpoint found, initializing new state",
			"payload_size", m.cfg.PayloadSize)
		m.metrics.ObserveRecovery(OutcomeColdStart.String(), 0)
		return Outcome{
			Kind:  OutcomeColdStart,
			State: domain.NewProcessState(m.cfg.PayloadSize),
		}
	}

	m.logger.Info("state restored, continuing from checkpoint",
		"store", best.info.Store,
		"counter", best.info.Counter,
		"written_by", best.info.RunID,
		"saved_at", best.info.SavedAt)
	m.metrics.ObserveRecovery(OutcomeRestored.String(), best.info.Counter)
	return Outcome{
		Kind:  OutcomeRestored,
		State: best.rec.State,
		Info:  best.info,
	}
}

type loaded struct {
	rec  *Record
	info *Info
}

// loadStore returns (nil, nil) when the store holds no checkpoint.
func (m *Manager) loadStore(ctx context.Context, s Store) (*loaded, error) {
	buf, err := s.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			m.logger.Debug("no checkpoint in store", "store", s.Name())
			return nil, nil
		}
		if !domain.IsDomainError(err, "") {
			err = domain.ErrCheckpointRead.WithCause(err)
		}
		return nil, fmt.Errorf("%s store: %w", s.Name(), err)
	}

	rec, err := DecodeRecord(buf, m.cfg.PayloadSize)
	if err != nil {
		return nil, fmt.Errorf("%s store: %w", s.Name(), err)
	}
	return &loaded{rec: rec, info: newInfo(s.Name(), rec, len(buf))}, nil
}

func (m *Manager) cleanupTemp(s Store) {
	c, ok := s.(interface{ CleanupTemp() (bool, error) })
	if !ok {
		return
	}
	found, err := c.CleanupTemp()
	if err != nil {
		m.logger.Warn("failed to remove stale checkpoint temp file",
			"store", s.Name(),
			"error", err)
		return
	}
	if found {
		m.logger.Warn("removed temp file from an interrupted save",
			"store", s.Name())
	}
}

// Report describes one store for inspection.
type Report struct {
	Store  string `json:"store" yaml:"store"`
	Absent bool   `json:"absent" yaml:"absent"`
	Info   *Info  `json:"info,omitempty" yaml:"info,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Inspect reads every store without changing anything on disk.
func (m *Manager) Inspect(ctx context.Context) []Report {
	var reports []Report
	for _, s := range m.stores() {
		r := Report{Store: s.Name()}
		l, err := m.loadStore(ctx, s)
		switch {
		case err != nil:
			r.Error = err.Error()
		case l == nil:
			r.Absent = true
		default:
			r.Info = l.info
		}
		reports = append(reports, r)
	}
	return reports
}

// Reset removes the checkpoint from every store so the next start is a
// cold start.
func (m *Manager) Reset(ctx context.Context) error {
	var errs []error
	for _, s := range m.stores() {
		if err := s.Remove(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s store: %w", s.Name(), err))
			continue
		}
		m.logger.Info("checkpoint removed", "store", s.Name())
	}
	return errors.Join(errs...)
}

// Close closes all stores.
func (m *Manager) Close() error {
	var errs []error
	for _, s := range m.stores() {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) stores() []Store {
	if m.fallback == nil {
		return []Store{m.primary}
	}
	return []Store{m.primary, m.fallback}
}
