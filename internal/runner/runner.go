package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/core/service"
	"github.com/yndnr/stillpoint/internal/storage/checkpoint"
	"github.com/yndnr/stillpoint/internal/telemetry/metric"
)

// Default configuration values.
const (
	DefaultInterval        = 10
	DefaultPace            = time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Checkpointer loads the initial state and persists snapshots.
// *checkpoint.Manager implements it.
type Checkpointer interface {
	Load(ctx context.Context) checkpoint.Outcome
	Save(ctx context.Context, state *domain.ProcessState) (*checkpoint.Info, error)
}

// CheckpointHook is called after every mutation with a copy of the
// current state. Returning true requests a checkpoint for this unit even
// when the cadence policy does not call for one.
type CheckpointHook func(state *domain.ProcessState) bool

// Config configures the work loop.
type Config struct {
	// Interval saves every Interval work units.
	Interval int

	// MaxAge additionally saves when the last save is older than this.
	// Zero disables it.
	MaxAge time.Duration

	// Pace is the minimum time between work units. Zero runs unpaced.
	Pace time.Duration

	// MaxUnits stops the loop after this many units. Zero runs until
	// the context is cancelled.
	MaxUnits int64

	// SaveOnShutdown writes a final checkpoint when the loop stops with
	// unsaved progress.
	SaveOnShutdown bool

	// ShutdownTimeout bounds the final save.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		Interval:        DefaultInterval,
		Pace:            DefaultPace,
		SaveOnShutdown:  true,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// StopReason says why the work loop returned.
type StopReason string

const (
	StopCancelled StopReason = "cancelled"
	StopMaxUnits  StopReason = "max_units"
	StopFatal     StopReason = "fatal"
)

// Result summarizes one run.
type Result struct {
	Outcome      checkpoint.OutcomeKind
	StartCounter int64
	FinalCounter int64
	Units        int64
	Saves        int
	SaveFailures int
	FinalSave    bool
	FinalSaveErr error
	Stopped      StopReason
}

// Runner drives the work loop: recover, mutate, checkpoint on cadence,
// and stop cleanly when cancelled.
type Runner struct {
	cp      Checkpointer
	cfg     Config
	cadence service.CadencePolicy
	mutator service.Mutator
	hook    CheckpointHook
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metric.Registry
	now     func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMutator sets the work unit. Default: service.MarkMutator.
func WithMutator(m service.Mutator) Option {
	return func(r *Runner) {
		r.mutator = m
	}
}

// WithCheckpointHook sets a callback invoked after every mutation.
func WithCheckpointHook(h CheckpointHook) Option {
	return func(r *Runner) {
		r.hook = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithClock sets the time source used by the cadence policy.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// New creates a runner.
func New(cp Checkpointer, cfg Config, opts ...Option) (*Runner, error) {
	if cp == nil {
		return nil, domain.ErrInternal.WithDetails("runner: checkpointer is required")
	}
	if cfg.Interval < 1 {
		return nil, domain.ErrInvalidConfig.WithDetails("runner: interval must be at least 1")
	}
	if cfg.Pace < 0 || cfg.MaxUnits < 0 || cfg.MaxAge < 0 {
		return nil, domain.ErrInvalidConfig.WithDetails("runner: negative pace, max_units or max_age")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	r := &Runner{
		cp:      cp,
		cfg:     cfg,
		cadence: service.NewCadence(int64(cfg.Interval), cfg.MaxAge),
		mutator: service.MarkMutator,
		logger:  slog.Default(),
		now:     time.Now,
	}
	if cfg.Pace > 0 {
		r.limiter = rate.NewLimiter(rate.Every(cfg.Pace), 1)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run recovers the state and executes work units until ctx is cancelled
// or MaxUnits is reached.
//
// A fatal recovery outcome returns its error without running any unit.
// Save failures during the loop are logged and the loop continues; they
// are reported in the Result, not as an error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	// Recovery is not interrupted; a cancelled ctx stops the loop before
	// the first unit instead.
	out := r.cp.Load(context.WithoutCancel(ctx))
	res := Result{Outcome: out.Kind}
	if out.Fatal() {
		res.Stopped = StopFatal
		r.logger.Error("refusing to start: checkpoint is unusable",
			"code", domain.GetErrorCode(out.Err),
			"error", out.Err)
		return res, out.Err
	}

	store := service.NewStateStore(out.State)
	res.StartCounter = store.Counter()
	saved := store.Counter()
	var lastSave time.Time

	r.logger.Info("work loop started",
		"outcome", out.Kind.String(),
		"counter", res.StartCounter,
		"interval", r.cfg.Interval,
		"pace", r.cfg.Pace)

	for {
		if ctx.Err() != nil {
			res.Stopped = StopCancelled
			break
		}
		if r.cfg.MaxUnits > 0 && res.Units >= r.cfg.MaxUnits {
			res.Stopped = StopMaxUnits
			break
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				res.Stopped = StopCancelled
				break
			}
		}

		counter := store.Advance(r.mutator)
		res.Units++
		r.metrics.ObserveWork(counter)

		requested := false
		if r.hook != nil {
			requested = r.hook(store.Snapshot())
		}

		now := r.now()
		if !r.cadence.ShouldCheckpoint(counter, lastSave, now) && !requested {
			continue
		}

		// A save that has started runs to completion; cancellation is
		// observed at the next unit boundary.
		if _, err := r.cp.Save(context.WithoutCancel(ctx), store.Snapshot()); err != nil {
			res.SaveFailures++
			r.logger.Error("checkpoint failed, continuing with in-memory state",
				"counter", counter,
				"error", err)
			continue
		}
		res.Saves++
		saved = counter
		lastSave = now
	}

	res.FinalCounter = store.Counter()
	r.logger.Info("work loop stopped",
		"reason", string(res.Stopped),
		"counter", res.FinalCounter,
		"units", res.Units)

	if r.cfg.SaveOnShutdown && res.FinalCounter != saved {
		res.FinalSave = true
		res.FinalSaveErr = r.finalSave(ctx, store.Snapshot())
		if res.FinalSaveErr == nil {
			res.Saves++
		} else {
			res.SaveFailures++
		}
	}

	return res, nil
}

func (r *Runner) finalSave(ctx context.Context, state *domain.ProcessState) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ShutdownTimeout)
	defer cancel()

	r.logger.Info("writing final checkpoint", "counter", state.Counter)
	if _, err := r.cp.Save(sctx, state); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			r.logger.Error("final checkpoint timed out",
				"counter", state.Counter,
				"timeout", r.cfg.ShutdownTimeout)
		} else {
			r.logger.Error("final checkpoint failed",
				"counter", state.Counter,
				"error", err)
		}
		return err
	}
	return nil
}
