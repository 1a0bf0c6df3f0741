package ingest

import (
	"context"
	"encoding/hex"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelnode/kestrel/runtime"
)

// Result is the only externally observable outcome of a submission.
type Result uint8

const (
	// Rejected means the submission was refused. No diagnostics are
	// attached; callers correlate failures via logs and metrics.
	Rejected Result = iota

	// Accepted means the submission entered the actor graph.
	Accepted
)

// String returns the string representation of Result.
func (r Result) String() string {
	if r == Accepted {
		return "accepted"
	}
	return "rejected"
}

// previewBytes bounds how much of a refused submission is logged.
const previewBytes = 32

// Forward hands accepted bytes into the actor graph. A send error (for
// example a saturated intake mailbox) rejects the submission.
type Forward func(ctx context.Context, data []byte) error

// Pipeline implements submit: decode, apply, forward. Only a submission
// that passes decode and apply produces mailbox activity, and it always
// produces exactly one send carrying the original, unmodified bytes.
type Pipeline struct {
	decoder EnvelopeDecoder
	applier StateApplier
	forward Forward

	rc *runtime.Context

	accepted prometheus.Counter
	rejected prometheus.Counter
}

// NewPipeline wires a submission pipeline under rc.
func NewPipeline(rc *runtime.Context, decoder EnvelopeDecoder, applier StateApplier, forward Forward) *Pipeline {
	accepted, _ := rc.Counter("submissions_accepted")
	rejected, _ := rc.Counter("submissions_rejected")

	return &Pipeline{
		decoder:  decoder,
		applier:  applier,
		forward:  forward,
		rc:       rc,
		accepted: accepted,
		rejected: rejected,
	}
}

// Submit runs one submission through the pipeline.
func (p *Pipeline) Submit(ctx context.Context, data []byte) Result {
	logger := p.rc.Logger()

	env, err := p.decoder.Decode(data)
	if err != nil {
		logger.Warn().Err(err).Str("preview", preview(data)).Msg("submission decode failed")
		return p.reject()
	}

	if err := p.applier.Apply(env); err != nil {
		logger.Warn().Err(err).Str("envelope", env.ID).Msg("submission apply failed")
		return p.reject()
	}

	if err := p.forward(ctx, data); err != nil {
		logger.Warn().Err(err).Str("envelope", env.ID).Msg("submission forward failed")
		return p.reject()
	}

	if p.accepted != nil {
		p.accepted.Inc()
	}
	return Accepted
}

func (p *Pipeline) reject() Result {
	if p.rejected != nil {
		p.rejected.Inc()
	}
	return Rejected
}

// preview renders a bounded, non-sensitive hex prefix of refused input.
func preview(data []byte) string {
	if len(data) > previewBytes {
		data = data[:previewBytes]
	}
	return hex.EncodeToString(data)
}
