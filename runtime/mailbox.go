package runtime

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// SendPolicy controls what a send does when the mailbox is full. The policy
// is fixed per mailbox instance at creation and never mixed.
type SendPolicy uint8

const (
	// Block suspends the sender until space frees, the mailbox closes, or
	// the sender's context is cancelled.
	Block SendPolicy = iota

	// Reject fails a send on a full mailbox immediately with
	// ErrMailboxSaturated.
	Reject
)

// String returns the string representation of SendPolicy.
func (p SendPolicy) String() string {
	switch p {
	case Block:
		return "block"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Mailbox is a bounded, multi-producer/single-consumer message channel. It
// is the sole synchronization primitive between actors: peers reach an actor
// only through its mailbox, never through its internal state.
//
// Ordering is FIFO per sender. Interleaving across concurrent senders is
// unordered, as usual for multi-producer queues.
type Mailbox[M any] struct {
	capacity int
	policy   SendPolicy

	buffer chan M
	depth  *atomic.Int64

	closed    chan struct{}
	closeOnce sync.Once

	claimed *atomic.Bool
}

// NewMailbox creates a mailbox with the given capacity and send policy.
// Capacities below one are raised to one.
func NewMailbox[M any](capacity int, policy SendPolicy) *Mailbox[M] {
	if capacity < 1 {
		capacity = 1
	}
	return &Mailbox[M]{
		capacity: capacity,
		policy:   policy,
		buffer:   make(chan M, capacity),
		depth:    atomic.NewInt64(0),
		closed:   make(chan struct{}),
		claimed:  atomic.NewBool(false),
	}
}

// Cap returns the fixed capacity of the mailbox.
func (m *Mailbox[M]) Cap() int {
	return m.capacity
}

// Len returns the number of messages currently queued.
func (m *Mailbox[M]) Len() int {
	return int(m.depth.Load())
}

// Policy returns the send policy fixed at creation.
func (m *Mailbox[M]) Policy() SendPolicy {
	return m.policy
}

// Sender returns a send handle for this mailbox. Senders are freely copyable
// and safe for concurrent use.
func (m *Mailbox[M]) Sender() Sender[M] {
	return Sender[M]{mb: m}
}

// Receiver claims the single consumer end of the mailbox. The second and any
// later claim fails with ErrReceiverClaimed.
func (m *Mailbox[M]) Receiver() (*Receiver[M], error) {
	if !m.claimed.CompareAndSwap(false, true) {
		return nil, ErrReceiverClaimed
	}
	return &Receiver[M]{mb: m}, nil
}

// Close marks the mailbox closed. Close is idempotent and terminal: pending
// and subsequent sends fail, and a pending receive resolves to the close
// signal once the queue is drained.
func (m *Mailbox[M]) Close() {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
}

// IsClosed reports whether Close has been called.
func (m *Mailbox[M]) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Sender is a shared producer handle for a mailbox.
type Sender[M any] struct {
	mb *Mailbox[M]
}

// Send enqueues a message per the mailbox's policy. Under Block it suspends
// until space frees; under Reject a full mailbox fails immediately with
// ErrMailboxSaturated. Sends on a closed mailbox fail with ErrMailboxClosed.
//
// A blocking send already suspended when Close is called may still enqueue
// if the consumer frees space first. The message is then delivered ahead of
// the close signal like any other queued message, so it is never lost:
// observationally it enqueued just before the close.
func (s Sender[M]) Send(ctx context.Context, msg M) error {
	mb := s.mb

	select {
	case <-mb.closed:
		return ErrMailboxClosed
	default:
	}

	if mb.policy == Reject {
		select {
		case mb.buffer <- msg:
			mb.depth.Inc()
			return nil
		case <-mb.closed:
			return ErrMailboxClosed
		default:
			return ErrMailboxSaturated
		}
	}

	select {
	case mb.buffer <- msg:
		mb.depth.Inc()
		return nil
	case <-mb.closed:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receiver is the single consumer end of a mailbox. It must not be shared
// across goroutines.
type Receiver[M any] struct {
	mb *Mailbox[M]
}

// Receive returns the next queued message in send order for its sender. It
// suspends until a message arrives, the mailbox closes, or ctx is cancelled.
// Messages already queued are drained ahead of the close signal; once the
// queue is empty a closed mailbox yields ErrMailboxClosed.
func (r *Receiver[M]) Receive(ctx context.Context) (M, error) {
	var zero M
	mb := r.mb

	// Drain queued messages before reporting close.
	select {
	case msg := <-mb.buffer:
		mb.depth.Dec()
		return msg, nil
	default:
	}

	select {
	case msg := <-mb.buffer:
		mb.depth.Dec()
		return msg, nil
	case <-mb.closed:
		select {
		case msg := <-mb.buffer:
			mb.depth.Dec()
			return msg, nil
		default:
			return zero, ErrMailboxClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close closes the underlying mailbox. Dropping the receiver this way makes
// subsequent sends fail, propagating shutdown to producers.
func (r *Receiver[M]) Close() {
	r.mb.Close()
}
