// Package shutdown coordinates graceful termination.
//
// SIGINT and SIGTERM cancel a context; the work loop observes the
// cancellation at its next unit boundary and returns. Cleanup hooks then
// run in reverse registration order under a fresh deadline, so a hook
// that writes a final checkpoint is not starved by the already-cancelled
// work context.
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	ctx, stop := h.NotifyContext(context.Background())
//	defer stop()
//	h.OnShutdown(metricsServer.Shutdown)
//	runLoop(ctx)
//	err := h.Shutdown()
package shutdown
