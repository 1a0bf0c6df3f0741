package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope kinds accepted at the boundary.
const (
	KindRegister = "register"
	KindTransfer = "transfer"
)

// Envelope is the structured form of a submission. The boundary validates
// it, but the actor graph receives the original bytes, not this struct.
type Envelope struct {
	// ID identifies the submission. Generated when absent.
	ID string `json:"id,omitempty"`

	// Kind selects the operation: register or transfer.
	Kind string `json:"kind"`

	// Account is the submitting account.
	Account string `json:"account"`

	// Nonce orders submissions per account.
	Nonce uint64 `json:"nonce"`

	// Body carries the operation payload, opaque to the boundary.
	Body json.RawMessage `json:"body,omitempty"`
}

// EnvelopeDecoder turns submitted bytes into an Envelope. The byte-level
// codec is an external collaborator; this port lets the node swap it.
type EnvelopeDecoder interface {
	Decode(data []byte) (*Envelope, error)
}

// JSONDecoder decodes JSON-encoded envelopes.
type JSONDecoder struct{}

// Decode implements EnvelopeDecoder.
func (JSONDecoder) Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch env.Kind {
	case KindRegister, KindTransfer:
	default:
		return nil, fmt.Errorf("unknown envelope kind %q", env.Kind)
	}
	if env.Account == "" {
		return nil, fmt.Errorf("envelope has no account")
	}

	if env.ID == "" {
		env.ID = uuid.New().String()
	} else if _, err := uuid.Parse(env.ID); err != nil {
		return nil, fmt.Errorf("invalid envelope id: %w", err)
	}

	return &env, nil
}
