package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const defaultShutdownTimeout = 30 * time.Second

// ShutdownFunc releases one resource during shutdown. It must respect
// the context deadline.
type ShutdownFunc func(context.Context) error

// ShutdownManager drains the HTTP server and runs registered cleanup
// funcs when the process receives SIGINT or SIGTERM. Cleanup funcs run
// concurrently under a shared deadline; the server is always drained
// first so in-flight requests can still reach their backends.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu    sync.Mutex
	funcs []ShutdownFunc
}

// NewShutdownManager wires a manager for the given server. A zero
// timeout falls back to 30 seconds.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &ShutdownManager{logger: logger, server: server, timeout: timeout}
}

// RegisterShutdownFunc adds a cleanup func. Safe to call from any
// goroutine until shutdown begins.
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	sm.funcs = append(sm.funcs, fn)
	sm.mu.Unlock()
}

// WaitForShutdown blocks until a termination signal arrives, then runs
// the full shutdown sequence. It returns the first error class
// encountered: a failed server drain, a timeout, or failed cleanups.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	sm.logger.WithField("signal", sig.String()).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()
	return sm.shutdown(ctx)
}

func (sm *ShutdownManager) shutdown(ctx context.Context) error {
	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("server drain failed")
			return fmt.Errorf("server drain: %w", err)
		}
		sm.logger.Info("server drained")
	}

	sm.mu.Lock()
	funcs := sm.funcs
	sm.mu.Unlock()

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		cleanup []error
	)
	for i, fn := range funcs {
		wg.Add(1)
		go func(i int, fn ShutdownFunc) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				sm.logger.WithError(err).Errorf("cleanup %d failed", i)
				errMu.Lock()
				cleanup = append(cleanup, err)
				errMu.Unlock()
			}
		}(i, fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		sm.logger.Warn("shutdown deadline reached before cleanup finished")
		return errors.New("shutdown timeout reached")
	case <-done:
	}

	if len(cleanup) > 0 {
		return fmt.Errorf("shutdown completed with %d errors", len(cleanup))
	}
	sm.logger.Info("cleanup complete")
	return nil
}
