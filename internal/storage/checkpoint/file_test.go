package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/stillpoint/internal/core/domain"
)

// faultFile wraps a real file and fails partway through the record.
type faultFile struct {
	f         *os.File
	failAfter int // bytes accepted before the write fails; -1 disables
	syncErr   error
}

func (w *faultFile) Write(p []byte) (int, error) {
	if w.failAfter >= 0 && len(p) > w.failAfter {
		n, _ := w.f.Write(p[:w.failAfter])
		return n, errors.New("injected: device lost")
	}
	return w.f.Write(p)
}

func (w *faultFile) Sync() error {
	if w.syncErr != nil {
		return w.syncErr
	}
	return w.f.Sync()
}

func (w *faultFile) Close() error {
	return w.f.Close()
}

func injectFault(s *FileStore, failAfter int, syncErr error) {
	s.openFile = func(name string, flag int, perm os.FileMode) (writeFile, error) {
		f, err := os.OpenFile(name, flag, perm)
		if err != nil {
			return nil, err
		}
		return &faultFile{f: f, failAfter: failAfter, syncErr: syncErr}, nil
	}
}

func TestFileStore_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint.dat")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Read(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read on empty store = %v, want ErrNotFound", err)
	}

	data := []byte("first record")
	if err := s.Write(ctx, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read = %q, want %q", got, data)
	}

	if _, err := os.Stat(path + tempSuffix); !os.IsNotExist(err) {
		t.Error("temp file should not remain after a successful write")
	}

	st, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode().Perm() != DefaultFilePerm {
		t.Errorf("perm = %v, want %v", st.Mode().Perm(), os.FileMode(DefaultFilePerm))
	}
}

func TestFileStore_WriteReplaces(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "checkpoint.dat"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Write(ctx, []byte("a much longer first record")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, []byte("short")); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Read(ctx)
	if string(got) != "short" {
		t.Errorf("Read = %q, want %q", got, "short")
	}
}

func TestFileStore_FailedWriteKeepsPrevious(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		failAfter int
		syncErr   error
		rename    func(string, string) error
		wantErr   error
	}{
		{"write fails halfway", 5, nil, nil, domain.ErrCheckpointWrite},
		{"write fails before any byte", 0, nil, nil, domain.ErrCheckpointWrite},
		{"sync fails", -1, errors.New("injected: fsync EIO"), nil, domain.ErrCheckpointWrite},
		{"rename fails", -1, nil, func(string, string) error { return errors.New("injected: EXDEV") }, domain.ErrCheckpointWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "checkpoint.dat")
			s, err := NewFileStore(path)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Write(ctx, []byte("previous good record")); err != nil {
				t.Fatal(err)
			}

			injectFault(s, tt.failAfter, tt.syncErr)
			if tt.rename != nil {
				s.rename = tt.rename
			}

			err = s.Write(ctx, []byte("replacement record"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Write = %v, want %v", err, tt.wantErr)
			}

			got, err := s.Read(ctx)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(got) != "previous good record" {
				t.Errorf("Read = %q, previous record was lost", got)
			}
			if _, err := os.Stat(path + tempSuffix); !os.IsNotExist(err) {
				t.Error("temp file should be removed after a failed write")
			}
		})
	}
}

func TestFileStore_OpenError(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "checkpoint.dat"))
	if err != nil {
		t.Fatal(err)
	}
	s.openFile = func(string, int, os.FileMode) (writeFile, error) {
		return nil, os.ErrPermission
	}

	err = s.Write(context.Background(), []byte("x"))
	if !errors.Is(err, domain.ErrCheckpointOpen) {
		t.Fatalf("Write = %v, want ErrCheckpointOpen", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Error("open error should wrap the underlying cause")
	}
}

func TestFileStore_ReadError(t *testing.T) {
	// A directory at the checkpoint path opens but cannot be read as a file.
	path := filepath.Join(t.TempDir(), "checkpoint.dat")
	if err := os.Mkdir(path, 0750); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(context.Background()); !errors.Is(err, domain.ErrCheckpointRead) {
		t.Errorf("Read = %v, want ErrCheckpointRead", err)
	}
}

func TestFileStore_CleanupTempAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.dat")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}

	found, err := s.CleanupTemp()
	if err != nil || found {
		t.Fatalf("CleanupTemp on clean dir = (%v, %v), want (false, nil)", found, err)
	}

	if err := os.WriteFile(path+tempSuffix, []byte("partial"), 0600); err != nil {
		t.Fatal(err)
	}
	found, err = s.CleanupTemp()
	if err != nil || !found {
		t.Fatalf("CleanupTemp = (%v, %v), want (true, nil)", found, err)
	}

	ctx := context.Background()
	if err := s.Write(ctx, []byte("record")); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if _, err := s.Read(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read after Remove = %v, want ErrNotFound", err)
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "checkpoint.dat"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Write(ctx, []byte("x")); !errors.Is(err, domain.ErrCheckpointWrite) {
		t.Errorf("Write = %v, want ErrCheckpointWrite", err)
	}
}

func TestFileStore_ReadOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	s, err := NewFileStore(filepath.Join(dir, "checkpoint.dat"), WithReadOnly())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("read-only store created %s", dir)
	}

	ctx := context.Background()
	if _, err := s.Read(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read = %v, want ErrNotFound", err)
	}
	if err := s.Write(ctx, []byte("x")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Write = %v, want ErrReadOnly", err)
	}
	if err := s.Remove(ctx); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Remove = %v, want ErrReadOnly", err)
	}
	if _, err := s.CleanupTemp(); !errors.Is(err, ErrReadOnly) {
		t.Errorf("CleanupTemp = %v, want ErrReadOnly", err)
	}
}
