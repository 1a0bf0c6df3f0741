package node

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelnode/kestrel/runtime"
)

// Block is a flushed batch of receipts.
type Block struct {
	Height   uint64
	Receipts []Receipt
}

// StoreBehavior is the storage actor: it accumulates receipts and flushes
// them into blocks on a periodic timer. The block log is in memory; the
// storage engine proper is outside this design.
type StoreBehavior struct {
	flushInterval time.Duration

	pending []Receipt

	mu     sync.RWMutex
	blocks []Block

	flushed prometheus.Counter
}

// NewStoreBehavior creates a storage actor flushing at the given interval.
func NewStoreBehavior(flushInterval time.Duration) *StoreBehavior {
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	return &StoreBehavior{flushInterval: flushInterval}
}

// Init implements runtime.Behavior.
func (b *StoreBehavior) Init(rc *runtime.Context) error {
	flushed, err := rc.Counter("blocks_flushed")
	if err != nil {
		return fmt.Errorf("failed to register metric: %w", err)
	}
	b.flushed = flushed
	return nil
}

// HandleMessage implements runtime.Behavior.
func (b *StoreBehavior) HandleMessage(rc *runtime.Context, msg StoreMsg) error {
	switch m := msg.(type) {
	case AppendReceipt:
		b.pending = append(b.pending, m.Receipt)
		return nil
	default:
		return fmt.Errorf("unhandled store message %T", msg)
	}
}

// TickInterval implements runtime.TickBehavior.
func (b *StoreBehavior) TickInterval() time.Duration {
	return b.flushInterval
}

// Tick implements runtime.TickBehavior: pending receipts become a block.
func (b *StoreBehavior) Tick(rc *runtime.Context) error {
	b.flush(rc)
	return nil
}

// Close implements runtime.Behavior. Remaining receipts are flushed so a
// clean shutdown never loses an applied operation.
func (b *StoreBehavior) Close() error {
	b.flush(nil)
	return nil
}

func (b *StoreBehavior) flush(rc *runtime.Context) {
	if len(b.pending) == 0 {
		return
	}

	b.mu.Lock()
	block := Block{
		Height:   uint64(len(b.blocks) + 1),
		Receipts: b.pending,
	}
	b.blocks = append(b.blocks, block)
	b.mu.Unlock()

	b.pending = nil
	if b.flushed != nil {
		b.flushed.Inc()
	}
	if rc != nil {
		rc.Logger().Debug().
			Uint64("height", block.Height).
			Int("receipts", len(block.Receipts)).
			Msg("block flushed")
	}
}

// Height returns the current block height. It is safe to call from outside
// the actor.
func (b *StoreBehavior) Height() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint64(len(b.blocks))
}

// BlockAt returns the block at the given height, if flushed.
func (b *StoreBehavior) BlockAt(height uint64) (Block, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if height == 0 || height > uint64(len(b.blocks)) {
		return Block{}, false
	}
	return b.blocks[height-1], true
}
