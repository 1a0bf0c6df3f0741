package runtime

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrMailboxClosed is returned by sends and receives on a closed
	// mailbox. It is a terminal lifecycle signal, not a processing error.
	ErrMailboxClosed = errors.New("mailbox is closed")

	// ErrMailboxSaturated is returned by sends on a full mailbox under the
	// Reject policy. Blocking-policy mailboxes suspend the caller instead
	// and never return this error.
	ErrMailboxSaturated = errors.New("mailbox is saturated")

	// ErrReceiverClaimed is returned when a second consumer tries to claim
	// a mailbox receiver. A mailbox has exactly one consumer.
	ErrReceiverClaimed = errors.New("mailbox receiver already claimed")
)

// ConstructionError reports actor peer dependencies that could not be
// resolved while building the actor graph. It is fatal: the Engine raises it
// before any actor is spawned, so no partial graph is ever left running.
type ConstructionError struct {
	// Missing maps an actor name to the peer names it requires that are
	// not registered.
	Missing map[string][]string
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	names := make([]string, 0, len(e.Missing))
	for name := range e.Missing {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s requires [%s]", name, strings.Join(e.Missing[name], ", ")))
	}
	return "unresolved actor dependencies: " + strings.Join(parts, "; ")
}

// SpawnFault is an unexpected runtime fault caught at a spawn boundary. The
// fault is delivered through the TaskHandle (or handled per the actor's
// declared fault policy) instead of terminating the process.
type SpawnFault struct {
	// Path is the label path of the context the fault occurred under.
	Path string

	// Value is the recovered panic value.
	Value any

	// Stack is the goroutine stack captured at recovery time.
	Stack []byte
}

// Error implements the error interface.
func (f *SpawnFault) Error() string {
	return fmt.Sprintf("fault in %s: %v", f.Path, f.Value)
}
