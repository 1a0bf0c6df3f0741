package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/kestrelnode/kestrel/telemetry"
)

// Context is the hierarchical capability handle every unit of concurrent
// work is created through. It carries an immutable label path for
// instrumentation identity, the shared cancellation signal, and the spawn
// capability. There is no ambient global state: subsystems reach metrics,
// logging and spawning only through the Context they were explicitly given.
type Context struct {
	path string

	ctx    context.Context
	cancel context.CancelFunc

	base     zerolog.Logger
	logger   zerolog.Logger
	registry *telemetry.Registry

	root *Context

	mu         sync.Mutex
	childNames map[string]int

	spawnSeq *atomic.Uint64
}

// NewRoot creates the root Context of a Context tree. Cancelling it is the
// single coordinated-shutdown trigger for everything spawned beneath it.
func NewRoot(name string, registry *telemetry.Registry, logger zerolog.Logger) *Context {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Context{
		path:       name,
		ctx:        ctx,
		cancel:     cancel,
		base:       logger,
		logger:     logger.With().Str("ctx", name).Logger(),
		registry:   registry,
		childNames: make(map[string]int),
		spawnSeq:   atomic.NewUint64(0),
	}
	c.root = c
	return c
}

// Path returns the immutable label path of this Context.
func (c *Context) Path() string {
	return c.path
}

// Logger returns a logger tagged with this Context's label path.
func (c *Context) Logger() *zerolog.Logger {
	return &c.logger
}

// Context returns the underlying cancellation context for use with blocking
// operations.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Done returns a channel closed when this Context or any of its ancestors is
// cancelled.
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err returns the cancellation cause, or nil while the Context is live.
func (c *Context) Err() error {
	return c.ctx.Err()
}

// Cancel marks this Context cancelled. The signal is observable by every
// descendant; it only signals intent and does not itself stop execution.
func (c *Context) Cancel() {
	c.cancel()
}

// WithLabel derives a child Context whose label path is this path plus the
// given name. Deriving the same name twice under one parent never silently
// merges: the second and later children get a deterministic "#n" suffix so
// metric and cancellation scopes stay distinct.
func (c *Context) WithLabel(name string) *Context {
	c.mu.Lock()
	n := c.childNames[name]
	c.childNames[name]++
	c.mu.Unlock()

	if n > 0 {
		name = fmt.Sprintf("%s#%d", name, n+1)
	}
	path := c.path + "." + name

	ctx, cancel := context.WithCancel(c.ctx)
	return &Context{
		path:       path,
		ctx:        ctx,
		cancel:     cancel,
		base:       c.base,
		logger:     c.base.With().Str("ctx", path).Logger(),
		registry:   c.registry,
		root:       c.root,
		childNames: make(map[string]int),
		spawnSeq:   atomic.NewUint64(0),
	}
}

// Counter registers (or fetches) a counter under this Context's label path.
// Registration is idempotent per name and kind.
func (c *Context) Counter(name string) (prometheus.Counter, error) {
	return c.registry.Counter(c.path, name)
}

// Gauge registers (or fetches) a gauge under this Context's label path.
func (c *Context) Gauge(name string) (prometheus.Gauge, error) {
	return c.registry.Gauge(c.path, name)
}

// Histogram registers (or fetches) a histogram under this Context's label
// path.
func (c *Context) Histogram(name string) (prometheus.Histogram, error) {
	return c.registry.Histogram(c.path, name)
}

// Registry exposes the process-wide metric registry this Context reports
// into.
func (c *Context) Registry() *telemetry.Registry {
	return c.registry
}

// Spawn schedules work on a fresh goroutine under a labeled child Context
// and returns a handle to its eventual result. Spawn never fails
// synchronously. The child inherits this Context's cancellation signal, and
// an unexpected runtime fault inside work is caught at the boundary and
// delivered through the handle; under the Fatal policy it additionally
// cancels the root Context, triggering full shutdown.
func (c *Context) Spawn(name string, policy FaultPolicy, work func(*Context) error) *TaskHandle {
	if name == "" {
		name = fmt.Sprintf("task-%d", c.spawnSeq.Inc())
	}
	child := c.WithLabel(name)
	handle := newTaskHandle(child.path)

	go func() {
		err := containFault(child, work)
		if err != nil {
			if policy == Fatal {
				child.logger.Error().Err(err).Msg("fatal fault, cancelling root")
				c.root.Cancel()
			} else {
				child.logger.Error().Err(err).Msg("contained fault")
			}
		}
		handle.complete(err)
	}()

	return handle
}
