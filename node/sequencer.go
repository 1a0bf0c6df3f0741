package node

import (
	"fmt"

	"github.com/kestrelnode/kestrel/runtime"
	"github.com/kestrelnode/kestrel/seqalloc"
)

// SequencerBehavior orders privileged operations through the external
// sequence allocator and records each as a receipt. It is wired with the
// Fatal policy: a node that cannot order privileged operations must not
// keep running.
type SequencerBehavior struct {
	allocator seqalloc.Allocator
	store     runtime.Sender[StoreMsg]
}

// NewSequencerBehavior wires the sequencer to its allocator and the storage
// sender.
func NewSequencerBehavior(allocator seqalloc.Allocator, store runtime.Sender[StoreMsg]) *SequencerBehavior {
	return &SequencerBehavior{
		allocator: allocator,
		store:     store,
	}
}

// Init implements runtime.Behavior.
func (b *SequencerBehavior) Init(rc *runtime.Context) error {
	if b.allocator == nil {
		return fmt.Errorf("sequencer has no allocator")
	}
	return nil
}

// HandleMessage implements runtime.Behavior.
func (b *SequencerBehavior) HandleMessage(rc *runtime.Context, msg SeqMsg) error {
	switch m := msg.(type) {
	case OrderPrivilegedOp:
		seq, err := b.allocator.Reserve(rc.Context(), m.Key, m.Fallback)
		if err != nil {
			return fmt.Errorf("failed to order %q: %w", m.Op, err)
		}
		rc.Logger().Info().
			Str("op", m.Op).
			Str("key", m.Key).
			Uint64("seq", seq).
			Msg("privileged operation ordered")

		return b.store.Send(rc.Context(), AppendReceipt{Receipt: Receipt{
			EnvelopeID: m.Op,
			Kind:       "privileged",
			Seq:        seq,
		}})
	default:
		return fmt.Errorf("unhandled sequencer message %T", msg)
	}
}

// Close implements runtime.Behavior.
func (b *SequencerBehavior) Close() error {
	return nil
}
