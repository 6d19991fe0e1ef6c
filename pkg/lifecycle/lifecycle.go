// Package lifecycle coordinates the startup and shutdown of the independent
// servers that make up cadview.
//
// A Manager moves through Created, Running, ShuttingDown and Stopped. Start
// binds every service synchronously, so address conflicts surface before
// anything serves, and then runs each Serve on an errgroup. Shutdown signals
// every service, in registration order, and then joins each one bounded by
// the configured timeout. It may be called any number of times from any
// goroutine; only the first call does work and every call returns once the
// manager has stopped.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Service is a server managed by a Manager.
type Service interface {
	// Name identifies the service in logs.
	Name() string

	// Listen binds the service's address. It must not block.
	Listen() error

	// Serve blocks until the service stops. A clean stop returns nil.
	Serve() error

	// Shutdown asks Serve to return, waiting at most until ctx is done.
	Shutdown(ctx context.Context) error
}

// State is the manager state.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrAlreadyStarted is returned by Start and Add after the first Start.
var ErrAlreadyStarted = errors.New("lifecycle: already started")

// DefaultTimeout bounds the shutdown of each service.
const DefaultTimeout = 5 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the per-service shutdown timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// Manager runs a fixed set of services.
type Manager struct {
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.Mutex
	state    State
	services []Service
	served   []chan struct{}
	err      error

	// group runs every Serve. groupCtx is cancelled by the first
	// unexpected Serve error; joined is closed once group.Wait returns
	// and waitErr holds its result.
	group    *errgroup.Group
	groupCtx context.Context
	joined   chan struct{}
	waitErr  error

	stopped chan struct{}
}

// New creates a Manager.
func New(logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:  logger.With("component", "lifecycle"),
		timeout: DefaultTimeout,
		joined:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add appends a service. Services are bound and shut down in the order they
// were added.
func (m *Manager) Add(svc Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateCreated {
		return ErrAlreadyStarted
	}
	m.services = append(m.services, svc)
	return nil
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the first error returned by a Serve that was not caused by
// Shutdown. It is set once the manager has stopped.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Start binds every service and starts serving. It is valid exactly once. If
// a service fails to bind, the services already bound are shut down, the
// manager stops and the bind error is returned.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateCreated {
		return ErrAlreadyStarted
	}

	for i, svc := range m.services {
		if err := svc.Listen(); err != nil {
			m.logger.Error("bind failed", "service", svc.Name(), "error", err)
			for _, bound := range m.services[:i] {
				m.shutdownService(bound, nil)
			}
			m.state = StateStopped
			close(m.stopped)
			return fmt.Errorf("lifecycle: %s: %w", svc.Name(), err)
		}
	}

	m.state = StateRunning
	m.group, m.groupCtx = errgroup.WithContext(context.Background())
	m.served = make([]chan struct{}, len(m.services))
	for i, svc := range m.services {
		done := make(chan struct{})
		m.served[i] = done
		m.group.Go(func() error {
			defer close(done)
			err := svc.Serve()
			if err != nil && m.State() == StateRunning {
				m.logger.Error("service failed", "service", svc.Name(), "error", err)
				return fmt.Errorf("lifecycle: %s: %w", svc.Name(), err)
			}
			return nil
		})
	}
	go func() {
		m.waitErr = m.group.Wait()
		close(m.joined)
	}()

	m.logger.Info("started", "services", len(m.services))
	return nil
}

// Shutdown stops every service. Timeouts are logged, never returned. Calling
// it before Start moves straight to Stopped.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	switch m.state {
	case StateCreated:
		m.state = StateStopped
		close(m.stopped)
		m.mu.Unlock()
		return
	case StateShuttingDown, StateStopped:
		m.mu.Unlock()
		<-m.stopped
		return
	}
	m.state = StateShuttingDown
	services := m.services
	served := m.served
	m.mu.Unlock()

	m.logger.Info("shutting down", "timeout", m.timeout)
	var (
		wg    sync.WaitGroup
		stuck atomic.Bool
	)
	for i, svc := range services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !m.shutdownService(svc, served[i]) {
				stuck.Store(true)
			}
		}()
	}
	wg.Wait()
	err := m.join(!stuck.Load())

	m.mu.Lock()
	m.state = StateStopped
	m.err = err
	m.mu.Unlock()
	close(m.stopped)
	m.logger.Info("stopped")
}

// join returns the errgroup result. When a service is stuck past its
// timeout the group cannot be waited on and the cancellation cause stands in.
func (m *Manager) join(allStopped bool) error {
	if allStopped {
		<-m.joined
		return m.waitErr
	}
	if cause := context.Cause(m.groupCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// shutdownService signals svc and, when served is non-nil, waits for its
// Serve goroutine. Both are bounded by the timeout. It reports false when
// Serve did not return in time.
func (m *Manager) shutdownService(svc Service, served <-chan struct{}) bool {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	start := time.Now()
	if err := svc.Shutdown(ctx); err != nil {
		m.logger.Warn("shutdown error", "service", svc.Name(), "error", err)
	}
	if served != nil {
		select {
		case <-served:
		case <-ctx.Done():
			m.logger.Warn("service did not stop in time", "service", svc.Name(), "timeout", m.timeout)
			return false
		}
	}
	m.logger.Debug("service stopped", "service", svc.Name(), "elapsed", time.Since(start))
	return true
}

// Run starts the services and blocks until ctx is done, a service fails or
// Shutdown is called, then shuts down. It returns the bind error or the
// first service failure.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		m.logger.Info("context done", "cause", context.Cause(ctx))
	case <-m.groupCtx.Done():
	case <-m.stopped:
	}

	m.Shutdown()
	return m.Err()
}

// Wait blocks until the manager has stopped.
func (m *Manager) Wait() {
	<-m.stopped
}

// Done is closed once the manager has stopped.
func (m *Manager) Done() <-chan struct{} {
	return m.stopped
}
