package confloader

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := NewWatcher(
		WithWatcherLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDebounce(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestNewWatcher(t *testing.T) {
	w := newTestWatcher(t)
	if w.watcher == nil {
		t.Error("NewWatcher() watcher is nil")
	}
	if w.debounce != 50*time.Millisecond {
		t.Errorf("debounce = %v, want 50ms", w.debounce)
	}
}

func TestWatcher_Watch_NonexistentDir(t *testing.T) {
	w := newTestWatcher(t)
	if err := w.Watch("/nonexistent/dir/config.yaml"); err == nil {
		t.Error("Watch() should fail for a nonexistent directory")
	}
}

func TestWatcher_FileChange(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "stillpoint.yaml")
	if err := os.WriteFile(configFile, []byte("log:\n  level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t)
	if err := w.Watch(configFile); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	var changed atomic.Value
	w.OnChange(func(path string) {
		changed.Store(path)
		calls.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Several writes in a burst are delivered once.
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if !waitFor(t, func() bool { return calls.Load() > 0 }) {
		t.Fatal("callback not invoked after file change")
	}
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("callback invoked %d times, want 1", n)
	}
	if got, _ := changed.Load().(string); filepath.Base(got) != "stillpoint.yaml" {
		t.Errorf("changed path = %q", got)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "stillpoint.yaml")
	if err := os.WriteFile(configFile, []byte("a: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t)
	if err := w.Watch(configFile); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w.OnChange(func(string) { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(filepath.Join(dir, "checkpoint.dat"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("callback invoked %d times for an unrelated file", n)
	}
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	w := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
