package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultTimeout bounds the time given to shutdown hooks.
const DefaultTimeout = 10 * time.Second

// Signals are the signals that request a graceful shutdown.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	hooks   []func(context.Context) error
	mu      sync.Mutex
	once    sync.Once
	err     error
}

// NewHandler creates a new shutdown handler. A non-positive timeout means
// DefaultTimeout.
func NewHandler(timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{
		timeout: timeout,
		hooks:   make([]func(context.Context) error, 0),
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM. After
// the first signal, stop restores default handling so that a second signal
// terminates the process immediately.
func (h *Handler) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, Signals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}

// Shutdown runs the hooks once, in reverse registration order, with a
// context bounded by the handler timeout. Later calls return the first
// result. All hook errors are joined.
func (h *Handler) Shutdown() error {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		hooks := make([]func(context.Context) error, len(h.hooks))
		copy(hooks, h.hooks)
		h.mu.Unlock()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		h.err = errors.Join(errs...)
	})
	return h.err
}
