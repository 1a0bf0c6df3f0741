package node

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelnode/kestrel/ingest"
	"github.com/kestrelnode/kestrel/runtime"
)

// ExecBehavior applies envelopes to the node's in-memory ledger state and
// emits a receipt per applied operation. The state is owned exclusively by
// this actor; sequential message processing is its only synchronization.
type ExecBehavior struct {
	store runtime.Sender[StoreMsg]

	// accounts maps a registered account to its last applied nonce.
	accounts map[string]uint64

	applied prometheus.Counter
}

// NewExecBehavior wires the execution actor's storage sender.
func NewExecBehavior(store runtime.Sender[StoreMsg]) *ExecBehavior {
	return &ExecBehavior{store: store}
}

// Init implements runtime.Behavior.
func (b *ExecBehavior) Init(rc *runtime.Context) error {
	b.accounts = make(map[string]uint64)

	applied, err := rc.Counter("envelopes_applied")
	if err != nil {
		return fmt.Errorf("failed to register metric: %w", err)
	}
	b.applied = applied
	return nil
}

// HandleMessage implements runtime.Behavior.
func (b *ExecBehavior) HandleMessage(rc *runtime.Context, msg ExecMsg) error {
	switch m := msg.(type) {
	case ApplyEnvelope:
		return b.apply(rc, m)
	default:
		return fmt.Errorf("unhandled exec message %T", msg)
	}
}

// apply mutates ledger state and emits the receipt before the next message
// is dequeued.
func (b *ExecBehavior) apply(rc *runtime.Context, m ApplyEnvelope) error {
	switch m.Kind {
	case ingest.KindRegister:
		if _, exists := b.accounts[m.Account]; exists {
			return fmt.Errorf("envelope %s: account %q already registered", m.ID, m.Account)
		}
		b.accounts[m.Account] = m.Nonce

	case ingest.KindTransfer:
		last, exists := b.accounts[m.Account]
		if !exists {
			return fmt.Errorf("envelope %s: account %q unknown", m.ID, m.Account)
		}
		if m.Nonce <= last {
			return fmt.Errorf("envelope %s: stale nonce %d", m.ID, m.Nonce)
		}
		b.accounts[m.Account] = m.Nonce

	default:
		return fmt.Errorf("envelope %s: unknown kind %q", m.ID, m.Kind)
	}

	b.applied.Inc()
	return b.store.Send(rc.Context(), AppendReceipt{Receipt: Receipt{
		EnvelopeID: m.ID,
		Account:    m.Account,
		Kind:       m.Kind,
	}})
}

// Close implements runtime.Behavior.
func (b *ExecBehavior) Close() error {
	b.accounts = nil
	return nil
}
