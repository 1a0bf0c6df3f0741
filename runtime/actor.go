package runtime

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// ActorState represents the lifecycle state of an Actor.
type ActorState int32

const (
	// StateCreated means the Actor has been wired but not spawned.
	StateCreated ActorState = iota

	// StateStarting means the Actor is acquiring its receiver and
	// initializing owned resources.
	StateStarting

	// StateRunning means the Actor is processing messages.
	StateRunning

	// StateShuttingDown means the Actor observed cancellation and is
	// finishing its in-flight message and releasing resources.
	StateShuttingDown

	// StateStopped is terminal: no further messages are processed and the
	// mailbox receiver has been dropped.
	StateStopped
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Behavior is the application logic hosted by an Actor. Messages are
// processed strictly one at a time, so implementations need no locking for
// state owned by the actor.
type Behavior[M any] interface {
	// Init acquires the behavior's owned resources. The actor enters its
	// message loop only if Init returns nil; a failure is fatal to this
	// actor and escalates per its declared fault policy.
	Init(rc *Context) error

	// HandleMessage processes one message to completion, including any
	// sends to peer mailboxes. An error is local: it is logged and the
	// loop continues with the next message.
	HandleMessage(rc *Context, msg M) error

	// Close releases the behavior's owned resources. It runs exactly once
	// during shutdown, after the in-flight message has finished.
	Close() error
}

// TickBehavior is optionally implemented by behaviors that want a periodic
// timer interleaved with message processing.
type TickBehavior interface {
	// TickInterval returns the timer period. A non-positive interval
	// disables the timer.
	TickInterval() time.Duration

	// Tick runs on each timer expiry, never concurrently with
	// HandleMessage.
	Tick(rc *Context) error
}

// Actor is a single-consumer event loop owning exactly one mailbox receiver.
// It processes messages sequentially: a message finishes, side effects
// included, before the next wait begins. The actor deliberately never spawns
// one task per message; sequential processing is what keeps multi-step
// protocols consistent without locks.
type Actor[M any] struct {
	name     string
	behavior Behavior[M]
	mailbox  *Mailbox[M]

	state     *atomic.Int32
	processed *atomic.Uint64
}

// NewActor wires a behavior to the mailbox it will consume. The actor does
// not run until an Engine (or a Spawn call) executes Run.
func NewActor[M any](name string, behavior Behavior[M], mailbox *Mailbox[M]) *Actor[M] {
	return &Actor[M]{
		name:      name,
		behavior:  behavior,
		mailbox:   mailbox,
		state:     atomic.NewInt32(int32(StateCreated)),
		processed: atomic.NewUint64(0),
	}
}

// Name returns the actor's identity, used as its label under the Engine's
// root Context.
func (a *Actor[M]) Name() string {
	return a.name
}

// State returns the actor's current lifecycle state.
func (a *Actor[M]) State() ActorState {
	return ActorState(a.state.Load())
}

// Processed returns the number of messages handled so far.
func (a *Actor[M]) Processed() uint64 {
	return a.processed.Load()
}

// Sender returns a producer handle for this actor's mailbox, for peers that
// need to reach it.
func (a *Actor[M]) Sender() Sender[M] {
	return a.mailbox.Sender()
}

// Run executes the actor's event loop under rc until cancellation or mailbox
// close. It is the actor's entry point and must be called at most once.
func (a *Actor[M]) Run(rc *Context) error {
	if !a.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("actor %s already started (state: %s)", a.name, a.State())
	}

	recv, err := a.mailbox.Receiver()
	if err != nil {
		a.state.Store(int32(StateStopped))
		return fmt.Errorf("actor %s: %w", a.name, err)
	}

	if err := a.behavior.Init(rc); err != nil {
		a.state.Store(int32(StateStopped))
		recv.Close()
		return fmt.Errorf("actor %s failed to initialize: %w", a.name, err)
	}

	a.state.Store(int32(StateRunning))
	rc.Logger().Debug().Msg("actor running")

	processedMetric, _ := rc.Counter("messages_processed")
	failedMetric, _ := rc.Counter("messages_failed")
	depthMetric, _ := rc.Gauge("mailbox_depth")

	var tickC <-chan time.Time
	ticker, ticks := a.behavior.(TickBehavior)
	if ticks && ticker.TickInterval() > 0 {
		t := time.NewTicker(ticker.TickInterval())
		defer t.Stop()
		tickC = t.C
	}

	for {
		if depthMetric != nil {
			depthMetric.Set(float64(a.mailbox.Len()))
		}

		// Cancellation wins over queued work: the in-flight message was
		// finished above, nothing further is dequeued.
		select {
		case <-rc.Done():
			return a.stop(rc, recv)
		default:
		}

		select {
		case msg := <-a.mailbox.buffer:
			a.mailbox.depth.Dec()
			a.processed.Inc()
			if processedMetric != nil {
				processedMetric.Inc()
			}
			if err := a.behavior.HandleMessage(rc, msg); err != nil {
				if failedMetric != nil {
					failedMetric.Inc()
				}
				rc.Logger().Error().Err(err).Msg("message processing failed")
			}

		case <-tickC:
			if err := ticker.Tick(rc); err != nil {
				rc.Logger().Error().Err(err).Msg("tick failed")
			}

		case <-a.mailbox.closed:
			return a.stop(rc, recv)

		case <-rc.Done():
			return a.stop(rc, recv)
		}
	}
}

// stop finishes the Running -> ShuttingDown -> Stopped transition: owned
// resources are released, then the receiver is dropped so close semantics
// propagate to senders.
func (a *Actor[M]) stop(rc *Context, recv *Receiver[M]) error {
	a.state.Store(int32(StateShuttingDown))

	if pending := a.mailbox.Len(); pending > 0 {
		rc.Logger().Warn().Int("pending", pending).Msg("discarding queued messages on shutdown")
	}

	err := a.behavior.Close()
	recv.Close()
	a.state.Store(int32(StateStopped))

	if err != nil {
		rc.Logger().Error().Err(err).Msg("behavior close failed")
		return fmt.Errorf("actor %s close: %w", a.name, err)
	}
	rc.Logger().Debug().Uint64("processed", a.processed.Load()).Msg("actor stopped")
	return nil
}
