package runtime

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runnable is a unit the Engine can spawn: an actor entry point executed
// under a labeled child Context.
type Runnable interface {
	// Name returns the unit's identity within the graph.
	Name() string

	// Run executes until cancellation. It is called exactly once.
	Run(rc *Context) error
}

// ActorSpec declares one actor of the graph: what runs, how its faults are
// treated, and which peers it must be able to reach.
type ActorSpec struct {
	// Runnable is the actor to spawn.
	Runnable Runnable

	// Policy declares how faults escaping the actor are handled.
	Policy FaultPolicy

	// Peers names the actors this one sends to. Every peer must be
	// registered before the graph starts; the Engine refuses to start a
	// partial graph.
	Peers []string
}

// Engine wires the actor graph together and supervises it. Construction is
// total and fail-fast: every declared peer dependency is resolved before any
// actor spawns. The Engine owns the root Context; cancelling it is the
// single coordinated-shutdown trigger for every actor in the graph.
type Engine struct {
	root *Context

	mu      sync.Mutex
	specs   map[string]ActorSpec
	order   []string
	started bool

	group *errgroup.Group
}

// NewEngine creates an Engine supervising actors under the given root
// Context.
func NewEngine(root *Context) *Engine {
	return &Engine{
		root:  root,
		specs: make(map[string]ActorSpec),
	}
}

// Root returns the Engine's root Context.
func (e *Engine) Root() *Context {
	return e.root
}

// Register adds an actor spec to the graph. Registration is rejected after
// Start and for duplicate names.
func (e *Engine) Register(spec ActorSpec) error {
	if spec.Runnable == nil {
		return fmt.Errorf("actor spec has no runnable")
	}
	name := spec.Runnable.Name()
	if name == "" {
		return fmt.Errorf("actor spec has no name")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("cannot register %s: engine already started", name)
	}
	if _, exists := e.specs[name]; exists {
		return fmt.Errorf("actor %s is already registered", name)
	}

	e.specs[name] = spec
	e.order = append(e.order, name)
	return nil
}

// Start validates the whole graph and spawns every actor. If any declared
// peer is unresolved, Start returns a *ConstructionError and nothing is
// spawned; no partial graph is ever left half-running.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}

	missing := make(map[string][]string)
	for _, name := range e.order {
		for _, peer := range e.specs[name].Peers {
			if _, exists := e.specs[peer]; !exists {
				missing[name] = append(missing[name], peer)
			}
		}
	}
	if len(missing) > 0 {
		return &ConstructionError{Missing: missing}
	}

	e.started = true
	e.group = &errgroup.Group{}

	for _, name := range e.order {
		spec := e.specs[name]
		child := e.root.WithLabel(name)
		e.group.Go(func() error {
			return e.supervise(child, spec)
		})
	}

	e.root.Logger().Info().Int("actors", len(e.order)).Msg("actor graph started")
	return nil
}

// supervise runs one actor inside the fault-containment boundary and applies
// its declared policy to whatever escapes.
func (e *Engine) supervise(rc *Context, spec ActorSpec) error {
	err := containFault(rc, spec.Runnable.Run)
	if err == nil {
		return nil
	}

	if spec.Policy == Fatal {
		rc.Logger().Error().Err(err).Msg("fatal actor failure, cancelling root")
		e.root.Cancel()
		return err
	}

	// Contained: siblings keep running.
	rc.Logger().Error().Err(err).Msg("contained actor failure")
	return nil
}

// Wait blocks until every spawned actor has returned. It reports the first
// fatal failure, if any.
func (e *Engine) Wait() error {
	e.mu.Lock()
	group := e.group
	e.mu.Unlock()

	if group == nil {
		return fmt.Errorf("engine not started")
	}
	return group.Wait()
}

// Shutdown cancels the root Context and waits for every actor to drain in
// place, bounded by ctx.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.root.Cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown deadline exceeded: %w", ctx.Err())
	}
}
