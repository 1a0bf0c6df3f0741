package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service is a unit the lifecycle manager starts and stops around the actor
// graph: HTTP servers, watchers, the engine itself.
type Service interface {
	// Name returns the service name.
	Name() string

	// Start starts the service. It must return promptly; long-running
	// work belongs on the service's own goroutines.
	Start(ctx context.Context) error

	// Stop stops the service, honoring ctx as a deadline.
	Stop(ctx context.Context) error
}

// Lifecycle starts services in dependency order and stops them in reverse.
// Construction is fail-fast: a service naming an unregistered dependency is
// rejected at Start, before anything runs.
type Lifecycle struct {
	logger  zerolog.Logger
	timeout time.Duration

	mu           sync.Mutex
	services     map[string]Service
	dependencies map[string][]string
	registered   []string
	startOrder   []string
	started      bool
}

// NewLifecycle creates a lifecycle manager with the given per-service
// start/stop timeout.
func NewLifecycle(logger zerolog.Logger, timeout time.Duration) *Lifecycle {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Lifecycle{
		logger:       logger,
		timeout:      timeout,
		services:     make(map[string]Service),
		dependencies: make(map[string][]string),
	}
}

// Register registers a service with optional dependencies.
func (l *Lifecycle) Register(service Service, deps ...string) error {
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}
	name := service.Name()
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("cannot register %s: lifecycle already started", name)
	}
	if _, exists := l.services[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}

	l.services[name] = service
	l.dependencies[name] = deps
	l.registered = append(l.registered, name)
	return nil
}

// Start starts all services in dependency order.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("lifecycle already started")
	}

	order, err := l.calculateStartOrder()
	if err != nil {
		return fmt.Errorf("failed to calculate start order: %w", err)
	}
	l.started = true

	for _, name := range order {
		startCtx, cancel := context.WithTimeout(ctx, l.timeout)
		err := l.services[name].Start(startCtx)
		cancel()

		if err != nil {
			return fmt.Errorf("failed to start service %s: %w", name, err)
		}
		l.startOrder = append(l.startOrder, name)
		l.logger.Info().Str("service", name).Msg("service started")
	}
	return nil
}

// Stop stops all started services in reverse start order. Every service is
// stopped even when an earlier stop fails; the first failure is returned.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for i := len(l.startOrder) - 1; i >= 0; i-- {
		name := l.startOrder[i]

		stopCtx, cancel := context.WithTimeout(ctx, l.timeout)
		err := l.services[name].Stop(stopCtx)
		cancel()

		if err != nil {
			l.logger.Error().Err(err).Str("service", name).Msg("service stop failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to stop service %s: %w", name, err)
			}
			continue
		}
		l.logger.Info().Str("service", name).Msg("service stopped")
	}

	l.startOrder = nil
	return firstErr
}

// Services returns the registered service names in registration order.
func (l *Lifecycle) Services() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.registered))
	copy(out, l.registered)
	return out
}

// calculateStartOrder runs Kahn's algorithm over the dependency graph,
// keeping registration order for ties so startup is deterministic.
func (l *Lifecycle) calculateStartOrder() ([]string, error) {
	inDegree := make(map[string]int, len(l.services))
	dependents := make(map[string][]string, len(l.services))

	for _, name := range l.registered {
		for _, dep := range l.dependencies[name] {
			if _, exists := l.services[dep]; !exists {
				return nil, fmt.Errorf("service %s depends on unregistered service %s", name, dep)
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var queue []string
	for _, name := range l.registered {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(l.registered) {
		return nil, fmt.Errorf("dependency cycle detected")
	}
	return order, nil
}
