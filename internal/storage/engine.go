package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/storage/checkpoint"
	"github.com/yndnr/stillpoint/internal/telemetry/metric"
)

// Config configures the storage engine.
type Config struct {
	// Checkpoint is the manager configuration. Primary and Fallback are
	// filled in by New.
	Checkpoint checkpoint.Config

	// FallbackEnabled opens a Badger store as the fallback location.
	FallbackEnabled bool

	// KV configures the fallback store. A relative Dir is resolved
	// against the checkpoint file's directory.
	KV KVConfig

	// ReadOnly opens the stores without creating or changing anything on
	// disk. Save, Reset and the temp file cleanup in Load fail.
	ReadOnly bool
}

// DefaultConfig returns the default storage configuration for a checkpoint
// file at path.
func DefaultConfig(path string) Config {
	return Config{
		Checkpoint: checkpoint.DefaultConfig(path),
		KV:         DefaultKVConfig("checkpoint.kv"),
	}
}

// Engine owns the checkpoint stores and the manager built on them.
type Engine struct {
	manager *checkpoint.Manager
	file    *checkpoint.FileStore
	kv      *BadgerStore
	logger  *slog.Logger
}

// New opens the stores and creates the checkpoint manager.
//
// This does NOT perform recovery. Call Manager().Load() after New.
func New(cfg Config) (*Engine, error) {
	ckpt := cfg.Checkpoint
	if ckpt.Logger == nil {
		ckpt.Logger = slog.Default()
	}
	if ckpt.Path == "" {
		ckpt.Path = checkpoint.DefaultPath
	}
	logger := ckpt.Logger

	fileOpts := []checkpoint.FileOption{checkpoint.WithFileLogger(logger)}
	if cfg.ReadOnly {
		fileOpts = append(fileOpts, checkpoint.WithReadOnly())
	}
	file, err := checkpoint.NewFileStore(ckpt.Path, fileOpts...)
	if err != nil {
		return nil, domain.ErrCheckpointOpen.WithDetails(ckpt.Path).WithCause(err)
	}
	ckpt.Primary = file

	e := &Engine{file: file, logger: logger}

	if cfg.FallbackEnabled {
		kvCfg := cfg.KV
		if kvCfg.Dir == "" {
			return nil, fmt.Errorf("storage: fallback dir is required")
		}
		if !filepath.IsAbs(kvCfg.Dir) {
			kvCfg.Dir = filepath.Join(filepath.Dir(ckpt.Path), kvCfg.Dir)
		}
		kvCfg.ReadOnly = cfg.ReadOnly
		if cfg.ReadOnly && !hasBadgerDB(kvCfg.Dir) {
			ckpt.Fallback = absentStore{name: "badger"}
		} else {
			kv, err := NewBadgerStore(kvCfg, logger)
			if err != nil {
				return nil, err
			}
			e.kv = kv
			ckpt.Fallback = kv
		}
	}

	m, err := checkpoint.NewManager(ckpt)
	if err != nil {
		e.closeStores()
		return nil, err
	}
	e.manager = m

	logger.Info("storage engine initialized",
		"path", ckpt.Path,
		"read_only", cfg.ReadOnly,
		"fallback", e.kv != nil,
		"payload_size", m.Config().PayloadSize,
		"checksum", m.Config().Checksum.String())

	return e, nil
}

// Manager returns the checkpoint manager.
func (e *Engine) Manager() *checkpoint.Manager {
	return e.manager
}

// Path returns the checkpoint file path.
func (e *Engine) Path() string {
	return e.file.Path()
}

// Fallback returns the Badger store, or nil when the fallback is disabled.
func (e *Engine) Fallback() *BadgerStore {
	return e.kv
}

// RegisterMetrics adds storage collectors to the registry.
func (e *Engine) RegisterMetrics(r *metric.Registry) {
	if r == nil {
		return
	}
	r.MustRegister(metric.NewFileCollector(e.file.Path()))
	if e.kv != nil {
		r.MustRegister(e.kv.Collector())
	}
}

// Close closes all stores.
func (e *Engine) Close() error {
	if e.manager != nil {
		return e.manager.Close()
	}
	return e.closeStores()
}

func (e *Engine) closeStores() error {
	var errs []error
	if err := e.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.kv != nil {
		if err := e.kv.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// absentStore stands in for a fallback database that was never created
// when the engine is opened read-only.
type absentStore struct {
	name string
}

func (s absentStore) Name() string { return s.name }

func (s absentStore) Write(context.Context, []byte) error {
	return domain.ErrCheckpointWrite.WithCause(checkpoint.ErrReadOnly)
}

func (s absentStore) Read(context.Context) ([]byte, error) {
	return nil, checkpoint.ErrNotFound
}

func (s absentStore) Remove(context.Context) error { return checkpoint.ErrReadOnly }

func (s absentStore) Close() error { return nil }
