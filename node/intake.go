package node

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kestrelnode/kestrel/ingest"
	"github.com/kestrelnode/kestrel/runtime"
)

// IntakeBehavior is the first actor behind the ingestion boundary. It
// receives the raw bytes of accepted submissions, decodes them once more
// into the structured form the graph works with, and fans out to execution
// and gossip.
type IntakeBehavior struct {
	decoder ingest.EnvelopeDecoder

	exec   runtime.Sender[ExecMsg]
	gossip runtime.Sender[GossipMsg]
}

// NewIntakeBehavior wires the intake actor's peer senders.
func NewIntakeBehavior(decoder ingest.EnvelopeDecoder, exec runtime.Sender[ExecMsg], gossip runtime.Sender[GossipMsg]) *IntakeBehavior {
	return &IntakeBehavior{
		decoder: decoder,
		exec:    exec,
		gossip:  gossip,
	}
}

// Init implements runtime.Behavior.
func (b *IntakeBehavior) Init(rc *runtime.Context) error {
	return nil
}

// HandleMessage implements runtime.Behavior.
func (b *IntakeBehavior) HandleMessage(rc *runtime.Context, raw []byte) error {
	// The boundary already validated these bytes; a decode failure here
	// means the two decoders disagree and the message is dropped.
	env, err := b.decoder.Decode(raw)
	if err != nil {
		return fmt.Errorf("accepted submission no longer decodes: %w", err)
	}

	if err := b.exec.Send(rc.Context(), ApplyEnvelope{
		ID:      env.ID,
		Kind:    env.Kind,
		Account: env.Account,
		Nonce:   env.Nonce,
		Raw:     raw,
	}); err != nil {
		return fmt.Errorf("failed to hand envelope to execution: %w", err)
	}

	// The gossip edge tolerates loss: its mailbox uses the reject policy
	// and a saturated relay just drops the digest.
	err = b.gossip.Send(rc.Context(), AnnounceDigest{EnvelopeID: env.ID, Account: env.Account})
	if err != nil && !errors.Is(err, runtime.ErrMailboxSaturated) && !errors.Is(err, runtime.ErrMailboxClosed) {
		return fmt.Errorf("failed to announce digest: %w", err)
	}
	return nil
}

// Close implements runtime.Behavior.
func (b *IntakeBehavior) Close() error {
	return nil
}
