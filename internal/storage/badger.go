package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/storage/checkpoint"
)

// checkpointKey holds the current record.
var checkpointKey = []byte("stillpoint/checkpoint/current")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv store closed")

// BadgerStore keeps the checkpoint record under a fixed key in an embedded
// Badger database. It implements checkpoint.Store and serves as the
// fallback location when the checkpoint file cannot be written.
type BadgerStore struct {
	db       *badger.DB
	cfg      BadgerConfig
	dir      string
	readOnly bool
	logger   *slog.Logger

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewBadgerStore opens (or creates) the Badger database in cfg.Dir.
func NewBadgerStore(cfg KVConfig, logger *slog.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}

	bc := cfg.Badger
	if bc.CacheSize > 0 {
		opts.BlockCacheSize = bc.CacheSize
	}
	if bc.MemTableSize > 0 {
		opts.MemTableSize = bc.MemTableSize
	}
	if bc.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = bc.ValueLogFileSize
	}
	if bc.NumMemtables > 0 {
		opts.NumMemtables = bc.NumMemtables
	}
	opts.SyncWrites = bc.SyncWrites
	opts.NumVersionsToKeep = 1
	if cfg.ReadOnly {
		opts = opts.WithReadOnly(true)
		bc.GCInterval = 0
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.ErrCheckpointOpen.WithDetails(cfg.Dir).WithCause(err)
	}

	s := &BadgerStore{
		db:       db,
		cfg:      bc,
		dir:      cfg.Dir,
		readOnly: cfg.ReadOnly,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go s.gcLoop()

	logger.Info("badger store opened",
		"dir", cfg.Dir,
		"read_only", cfg.ReadOnly,
		"sync_writes", bc.SyncWrites,
		"gc_interval", bc.GCInterval)

	return s, nil
}

// Name implements checkpoint.Store.
func (s *BadgerStore) Name() string {
	return "badger"
}

// Dir returns the database directory.
func (s *BadgerStore) Dir() string {
	return s.dir
}

// Write implements checkpoint.Store. The record replaces the previous one
// in a single transaction, so readers see either the old or the new record.
func (s *BadgerStore) Write(ctx context.Context, record []byte) error {
	if err := s.checkWritable(ctx); err != nil {
		return domain.ErrCheckpointWrite.WithCause(err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey, record)
	})
	if err != nil {
		return domain.ErrCheckpointWrite.WithDetails(s.dir).WithCause(err)
	}
	return nil
}

// Read implements checkpoint.Store.
func (s *BadgerStore) Read(ctx context.Context) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, domain.ErrCheckpointRead.WithCause(err)
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, checkpoint.ErrNotFound
		}
		return nil, domain.ErrCheckpointRead.WithDetails(s.dir).WithCause(err)
	}
	return value, nil
}

// Remove implements checkpoint.Store.
func (s *BadgerStore) Remove(ctx context.Context) error {
	if err := s.checkWritable(ctx); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(checkpointKey)
	})
}

func (s *BadgerStore) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

func (s *BadgerStore) checkWritable(ctx context.Context) error {
	if s.readOnly {
		return checkpoint.ErrReadOnly
	}
	return s.check(ctx)
}

// hasBadgerDB reports whether dir holds a Badger database. A read-only
// open fails on a directory without a manifest.
func hasBadgerDB(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, badger.ManifestFilename))
	return err == nil
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (s *BadgerStore) GC(ctx context.Context) (uint64, error) {
	start := time.Now()

	var runs uint64
	for ctx.Err() == nil {
		err := s.db.RunValueLogGC(s.gcThreshold())
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return runs, fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(runs)

	s.logger.Debug("badger gc completed",
		"rewrites", runs,
		"elapsed", time.Since(start))

	return runs, nil
}

func (s *BadgerStore) gcThreshold() float64 {
	if s.cfg.GCThreshold <= 0 || s.cfg.GCThreshold >= 1 {
		return 0.5
	}
	return s.cfg.GCThreshold
}

// Stats returns storage statistics.
func (s *BadgerStore) Stats() KVStats {
	lsm, vlog := s.db.Size()
	return KVStats{
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		LastGCTime:   s.lastGCTime.Load(),
		GCRuns:       s.gcRuns.Load(),
	}
}

// Close implements checkpoint.Store. It is safe to call more than once.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
		<-s.doneCh

		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("close badger: %w", cerr)
			return
		}
		s.logger.Info("badger store closed", "dir", s.dir)
	})
	return err
}

// Collector returns a Prometheus collector reporting the store's size and
// GC activity at scrape time.
func (s *BadgerStore) Collector() prometheus.Collector {
	return &badgerCollector{
		store: s,
		lsmDesc: prometheus.NewDesc(
			"stillpoint_badger_lsm_size_bytes",
			"Badger LSM tree size in bytes", nil, nil),
		vlogDesc: prometheus.NewDesc(
			"stillpoint_badger_value_log_size_bytes",
			"Badger value log size in bytes", nil, nil),
		gcDesc: prometheus.NewDesc(
			"stillpoint_badger_gc_rewrites_total",
			"Value log files rewritten by Badger garbage collection", nil, nil),
	}
}

type badgerCollector struct {
	store    *BadgerStore
	lsmDesc  *prometheus.Desc
	vlogDesc *prometheus.Desc
	gcDesc   *prometheus.Desc
}

func (c *badgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lsmDesc
	ch <- c.vlogDesc
	ch <- c.gcDesc
}

func (c *badgerCollector) Collect(ch chan<- prometheus.Metric) {
	if c.store.closed.Load() {
		return
	}
	st := c.store.Stats()
	ch <- prometheus.MustNewConstMetric(c.lsmDesc, prometheus.GaugeValue, float64(st.LSMSize))
	ch <- prometheus.MustNewConstMetric(c.vlogDesc, prometheus.GaugeValue, float64(st.ValueLogSize))
	ch <- prometheus.MustNewConstMetric(c.gcDesc, prometheus.CounterValue, float64(st.GCRuns))
}

func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	if s.cfg.GCInterval <= 0 {
		<-s.stopCh
		return
	}

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := s.GC(ctx); err != nil {
				s.logger.Error("badger auto gc failed", "error", err)
			}
			cancel()

		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface. Badger's
// info output is demoted to debug; it is noisy at startup.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
