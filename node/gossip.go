package node

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelnode/kestrel/runtime"
)

// GossipBehavior relays envelope digests toward peers. The transport itself
// is outside this design; the relay logs and counts what it would ship.
// Its mailbox is wired with the reject policy: a saturated relay drops
// digests rather than stalling ingestion.
type GossipBehavior struct {
	relayed prometheus.Counter
}

// NewGossipBehavior creates the gossip relay.
func NewGossipBehavior() *GossipBehavior {
	return &GossipBehavior{}
}

// Init implements runtime.Behavior.
func (b *GossipBehavior) Init(rc *runtime.Context) error {
	relayed, err := rc.Counter("digests_relayed")
	if err != nil {
		return fmt.Errorf("failed to register metric: %w", err)
	}
	b.relayed = relayed
	return nil
}

// HandleMessage implements runtime.Behavior.
func (b *GossipBehavior) HandleMessage(rc *runtime.Context, msg GossipMsg) error {
	switch m := msg.(type) {
	case AnnounceDigest:
		b.relayed.Inc()
		rc.Logger().Debug().
			Str("envelope", m.EnvelopeID).
			Str("account", m.Account).
			Msg("digest relayed")
		return nil
	default:
		return fmt.Errorf("unhandled gossip message %T", msg)
	}
}

// Close implements runtime.Behavior.
func (b *GossipBehavior) Close() error {
	return nil
}
