package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yndnr/stillpoint/internal/core/domain"
)

const (
	tempSuffix      = ".tmp"
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

// maxReadSize bounds Read so an oversized file is reported as trailing
// data instead of being loaded whole.
var maxReadSize = int64(RecordSize(domain.MaxPayloadSize)) + 1

// writeFile is the subset of *os.File used by Write.
type writeFile interface {
	io.Writer
	Sync() error
	Close() error
}

// FileStore keeps the checkpoint in a single file and replaces it with
// write-to-temp, fsync, rename.
type FileStore struct {
	path     string
	tmpPath  string
	dir      string
	perm     os.FileMode
	readOnly bool
	logger   *slog.Logger

	openFile func(name string, flag int, perm os.FileMode) (writeFile, error)
	rename   func(oldpath, newpath string) error
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileLogger sets the logger for the store.
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// WithReadOnly opens the store for reading only. Nothing is created on
// disk and the mutating methods return ErrReadOnly.
func WithReadOnly() FileOption {
	return func(s *FileStore) {
		s.readOnly = true
	}
}

// NewFileStore creates a store for path, creating its directory if needed.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint: path is required")
	}
	dir := filepath.Dir(path)

	s := &FileStore{
		path:    path,
		tmpPath: path + tempSuffix,
		dir:     dir,
		perm:    DefaultFilePerm,
		logger:  slog.Default(),
		openFile: func(name string, flag int, perm os.FileMode) (writeFile, error) {
			return os.OpenFile(name, flag, perm)
		},
		rename: os.Rename,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.readOnly {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return nil, fmt.Errorf("checkpoint: create dir: %w", err)
		}
	}
	return s, nil
}

// Name implements Store.
func (s *FileStore) Name() string {
	return "file"
}

// Path returns the checkpoint file path.
func (s *FileStore) Path() string {
	return s.path
}

// Write implements Store.
//
// The record goes to <path>.tmp in one write, is fsynced, then renamed over
// <path>. The rename is the only point where the current checkpoint
// changes, so a failure at any step leaves the previous file untouched.
func (s *FileStore) Write(ctx context.Context, record []byte) error {
	if s.readOnly {
		return domain.ErrCheckpointWrite.WithCause(ErrReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return domain.ErrCheckpointWrite.WithCause(err)
	}

	f, err := s.openFile(s.tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.perm)
	if err != nil {
		return domain.ErrCheckpointOpen.WithDetails(s.tmpPath).WithCause(err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(s.tmpPath)
		}
	}()

	n, err := f.Write(record)
	if err == nil && n != len(record) {
		err = io.ErrShortWrite
	}
	if err != nil {
		f.Close()
		return domain.ErrCheckpointWrite.
			WithDetails(fmt.Sprintf("wrote %d of %d bytes", n, len(record))).
			WithCause(err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return domain.ErrCheckpointWrite.WithDetails("sync").WithCause(err)
	}
	if err := f.Close(); err != nil {
		return domain.ErrCheckpointWrite.WithDetails("close").WithCause(err)
	}
	if err := s.rename(s.tmpPath, s.path); err != nil {
		return domain.ErrCheckpointWrite.WithDetails("rename").WithCause(err)
	}
	committed = true

	// The file itself is durable; the directory entry may still be lost
	// on some filesystems, which only costs this one save.
	if err := syncDir(s.dir); err != nil {
		s.logger.Warn("checkpoint directory sync failed",
			"dir", s.dir,
			"error", err)
	}
	return nil
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrCheckpointRead.WithCause(err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, domain.ErrCheckpointRead.WithDetails(s.path).WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxReadSize))
	if err != nil {
		return nil, domain.ErrCheckpointRead.WithDetails(s.path).WithCause(err)
	}
	return data, nil
}

// Remove implements Store. It also removes a leftover temp file.
func (s *FileStore) Remove(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}
	for _, p := range []string{s.path, s.tmpPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checkpoint: remove %s: %w", p, err)
		}
	}
	return nil
}

// CleanupTemp removes a temp file left behind by a save that crashed
// before its rename. It reports whether one was found.
func (s *FileStore) CleanupTemp() (bool, error) {
	if s.readOnly {
		return false, ErrReadOnly
	}
	err := os.Remove(s.tmpPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checkpoint: remove stale temp: %w", err)
	}
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func syncDir(dirPath string) error {
	dir, err := os.Open(dirPath)
	if err != nil {
		return fmt.Errorf("open dir for sync: %w", err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}
