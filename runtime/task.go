package runtime

import (
	"context"
	"runtime/debug"
	"sync"
)

// FaultPolicy declares how a fault in a spawned unit of work is handled.
// Criticality is a property of what is spawned, decided at the spawn site by
// whoever wires the graph, never inferred.
type FaultPolicy uint8

const (
	// Contained logs the fault and keeps sibling work running.
	Contained FaultPolicy = iota

	// Fatal propagates the fault into the root cancellation, triggering
	// coordinated shutdown of the whole graph.
	Fatal
)

// String returns the string representation of FaultPolicy.
func (p FaultPolicy) String() string {
	switch p {
	case Contained:
		return "contained"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// TaskHandle owns the eventual result or fault of a spawned unit of work. It
// does not own the work's resources; those belong to the spawned closure
// itself.
type TaskHandle struct {
	path string

	done chan struct{}
	once sync.Once
	err  error
}

func newTaskHandle(path string) *TaskHandle {
	return &TaskHandle{
		path: path,
		done: make(chan struct{}),
	}
}

// Path returns the label path of the spawned work.
func (h *TaskHandle) Path() string {
	return h.path
}

// Done returns a channel closed when the spawned work has finished.
func (h *TaskHandle) Done() <-chan struct{} {
	return h.done
}

// Err returns the result of the spawned work. It is nil before completion
// and for successful work; after a fault it is the *SpawnFault or the error
// the work returned.
func (h *TaskHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the spawned work finishes or ctx is cancelled, and
// returns the work's result.
func (h *TaskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *TaskHandle) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// containFault runs work under rc and converts an escaped panic into a
// *SpawnFault so a runtime fault becomes a reported result rather than a
// process-wide crash.
func containFault(rc *Context, work func(*Context) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &SpawnFault{
				Path:  rc.Path(),
				Value: v,
				Stack: debug.Stack(),
			}
		}
	}()
	return work(rc)
}
