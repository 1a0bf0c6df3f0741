package node

// Each subsystem consumes a closed message union: an unexported marker
// method seals the set of variants, so every actor's dispatch switch stays
// exhaustive and statically checkable.

// ExecMsg is the execution subsystem's message union.
type ExecMsg interface {
	execMsg()
}

// ApplyEnvelope asks the execution actor to apply one accepted submission.
type ApplyEnvelope struct {
	// ID is the envelope id assigned at ingestion.
	ID string

	// Kind is the envelope kind (register or transfer).
	Kind string

	// Account is the submitting account.
	Account string

	// Nonce orders submissions per account.
	Nonce uint64

	// Raw is the original submission, byte-identical to what the
	// ingestion boundary accepted.
	Raw []byte
}

func (ApplyEnvelope) execMsg() {}

// StoreMsg is the storage subsystem's message union.
type StoreMsg interface {
	storeMsg()
}

// AppendReceipt records the outcome of an applied operation.
type AppendReceipt struct {
	Receipt Receipt
}

func (AppendReceipt) storeMsg() {}

// Receipt is the durable trace of one applied operation.
type Receipt struct {
	// EnvelopeID ties the receipt to the ingested envelope, or names the
	// privileged operation for sequencer receipts.
	EnvelopeID string

	// Account is the affected account.
	Account string

	// Kind is the applied operation kind.
	Kind string

	// Seq is the privileged-operation sequence number, zero for ordinary
	// receipts.
	Seq uint64
}

// GossipMsg is the gossip relay's message union.
type GossipMsg interface {
	gossipMsg()
}

// AnnounceDigest advertises an accepted envelope to peers.
type AnnounceDigest struct {
	EnvelopeID string
	Account    string
}

func (AnnounceDigest) gossipMsg() {}

// SeqMsg is the sequencer's message union.
type SeqMsg interface {
	seqMsg()
}

// OrderPrivilegedOp asks the sequencer to assign a sequence number to a
// privileged operation.
type OrderPrivilegedOp struct {
	// Key selects the sequence the operation is ordered under.
	Key string

	// Fallback seeds the sequence when the allocator has no record.
	Fallback uint64

	// Op names the operation.
	Op string
}

func (OrderPrivilegedOp) seqMsg() {}
